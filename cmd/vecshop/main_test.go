package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/kailas-cloud/vecshop/internal/domain/search/candidate"
	"github.com/kailas-cloud/vecshop/internal/domain/search/result"
	"github.com/kailas-cloud/vecshop/internal/domain/search/weights"
)

func TestRootCmd_Subcommands(t *testing.T) {
	cmd := newRootCmd()
	if cmd.Use != "vecshop" {
		t.Errorf("Use = %q", cmd.Use)
	}

	want := map[string]bool{"serve": false, "search": false, "version": false}
	for _, sub := range cmd.Commands() {
		if _, ok := want[sub.Name()]; ok {
			want[sub.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %q missing", name)
		}
	}

	for _, flag := range []string{"env", "config", "log-level"} {
		if cmd.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("--%s flag missing", flag)
		}
	}
}

func TestSearchCmd_Flags(t *testing.T) {
	cmd := newSearchCmd(&rootOptions{})

	tests := []struct {
		name, def string
	}{
		{"category", ""},
		{"color", ""},
		{"image-vector", ""},
		{"top-k", "0"},
		{"overfetch", "0"},
		{"debug", "false"},
		{"json", "false"},
	}
	for _, tc := range tests {
		f := cmd.Flags().Lookup(tc.name)
		if f == nil {
			t.Errorf("--%s flag missing", tc.name)
			continue
		}
		if f.DefValue != tc.def {
			t.Errorf("--%s default = %q, want %q", tc.name, f.DefValue, tc.def)
		}
	}
}

func TestVersionCmd(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.HasPrefix(out.String(), "vecshop dev\n") {
		t.Errorf("output = %q", out.String())
	}
}

func TestParseVector(t *testing.T) {
	v, err := parseVector(" 0.5, -1,2 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(v) != 3 || v[0] != 0.5 || v[1] != -1 || v[2] != 2 {
		t.Errorf("v = %v", v)
	}

	if v, err := parseVector(""); err != nil || v != nil {
		t.Errorf("empty input = %v, %v", v, err)
	}
	if _, err := parseVector("0.1,x"); err == nil || !strings.Contains(err.Error(), "component 1") {
		t.Errorf("expected component error, got %v", err)
	}
}

func sampleResults() []result.Result {
	a := candidate.New("sku-1", map[string]any{"title": "Red Leather Shoes"}, 0.9)
	b := candidate.New("sku-2", map[string]any{"title": "Blue Canvas Shoes"}, 0.8)
	return []result.Result{
		result.New(a, 0.75, &result.Breakdown{VectorScore: 0.9, ColorScore: 1, TextScore: 1, Weights: weights.Default()}),
		result.New(b, 0.43, &result.Breakdown{VectorScore: 0.8, Weights: weights.Default()}),
	}
}

func TestPrintResults_Table(t *testing.T) {
	var out bytes.Buffer
	if err := printResults(&out, sampleResults(), false, true); err != nil {
		t.Fatalf("print: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines:\n%s", len(lines), out.String())
	}
	if !strings.Contains(lines[0], "CATEGORY") || !strings.Contains(lines[0], "DISTANCE") {
		t.Errorf("debug header missing: %q", lines[0])
	}
	if !strings.Contains(lines[1], "sku-1") || !strings.Contains(lines[1], "0.7500") ||
		!strings.Contains(lines[1], "Red Leather Shoes") {
		t.Errorf("row = %q", lines[1])
	}
	if !strings.Contains(lines[2], "0.8000") || !strings.Contains(lines[2], "0.2000") {
		t.Errorf("similarity/distance missing from row %q", lines[2])
	}
}

func TestPrintResults_Empty(t *testing.T) {
	var out bytes.Buffer
	if err := printResults(&out, nil, false, false); err != nil {
		t.Fatalf("print: %v", err)
	}
	if out.String() != "No products found.\n" {
		t.Errorf("output = %q", out.String())
	}
}

func TestPrintResults_JSON(t *testing.T) {
	var out bytes.Buffer
	if err := printResults(&out, sampleResults(), true, true); err != nil {
		t.Fatalf("print: %v", err)
	}

	var items []map[string]any
	if err := json.Unmarshal(out.Bytes(), &items); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(items) != 2 || items[0]["id"] != "sku-1" || items[1]["score"] != 0.43 {
		t.Errorf("items = %v", items)
	}
	if _, ok := items[0]["breakdown"]; !ok {
		t.Error("breakdown missing")
	}
	if _, ok := items[1]["distance"]; !ok {
		t.Error("distance missing")
	}
}
