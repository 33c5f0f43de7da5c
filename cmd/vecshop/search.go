package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/vecshop/internal/app"
	"github.com/kailas-cloud/vecshop/internal/domain/search/filter"
	"github.com/kailas-cloud/vecshop/internal/domain/search/request"
	"github.com/kailas-cloud/vecshop/internal/domain/search/result"
	"github.com/kailas-cloud/vecshop/internal/domain/vector"
	chiTransport "github.com/kailas-cloud/vecshop/internal/transport/chi"
)

type searchOptions struct {
	category    string
	color       string
	imageVector string
	topK        int
	overfetch   int
	debug       bool
	json        bool
}

func newSearchCmd(root *rootOptions) *cobra.Command {
	opts := &searchOptions{}

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Run one search against the configured store",
		Long: `Run one search through the full pipeline and print the ranked products.

Examples:
  vecshop search "red leather shoes" --color red --top-k 5
  vecshop search --image-vector 0.1,0.3,... --category shoes --debug
  vecshop search "summer dress" --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var query string
			if len(args) == 1 {
				query = args[0]
			}
			return runSearch(cmd, root, opts, query)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.category, "category", "", "exact category filter")
	f.StringVar(&opts.color, "color", "", "exact color filter")
	f.StringVar(&opts.imageVector, "image-vector", "", "comma-separated image embedding")
	f.IntVar(&opts.topK, "top-k", 0, "number of results (default from config)")
	f.IntVar(&opts.overfetch, "overfetch", 0, "over-fetch factor (default from config)")
	f.BoolVar(&opts.debug, "debug", false, "print the score breakdown")
	f.BoolVar(&opts.json, "json", false, "print JSON instead of a table")
	return cmd
}

func runSearch(cmd *cobra.Command, root *rootOptions, opts *searchOptions, query string) error {
	imageVec, err := parseVector(opts.imageVector)
	if err != nil {
		return err
	}

	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	logger, err := root.newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	a, err := app.Build(cmd.Context(), cfg, logger, app.Options{})
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}
	defer a.Close()

	filters, err := filter.New(opts.category, opts.color)
	if err != nil {
		return err //nolint:wrapcheck // domain error is self-describing
	}
	req, err := request.New(request.Params{
		Query:           query,
		ImageVector:     imageVec,
		Filters:         filters,
		TopK:            opts.topK,
		OverfetchFactor: opts.overfetch,
		Debug:           opts.debug,
	}, a.Limits)
	if err != nil {
		return err //nolint:wrapcheck // domain error is self-describing
	}

	results, err := a.Run(cmd.Context(), req)
	if err != nil {
		return err //nolint:wrapcheck // pipeline errors are returned verbatim
	}
	return printResults(cmd.OutOrStdout(), results, opts.json, opts.debug)
}

// parseVector reads "0.1, 0.2,0.3" into a vector. Empty input yields nil.
func parseVector(s string) (vector.Vector, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	v := make(vector.Vector, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("image-vector component %d: %w", i, err)
		}
		v[i] = float32(f)
	}
	return v, nil
}

func printResults(w io.Writer, results []result.Result, asJSON, debug bool) error {
	if asJSON {
		items := make([]chiTransport.SearchResultItem, len(results))
		for i := range results {
			items[i] = chiTransport.NewSearchResultItem(&results[i])
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(items) //nolint:wrapcheck // writer error
	}

	if len(results) == 0 {
		_, err := fmt.Fprintln(w, "No products found.")
		return err //nolint:wrapcheck // writer error
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	header := "#\tID\tSCORE\tSIMILARITY\tDISTANCE\tTITLE"
	if debug {
		header += "\tVECTOR\tCOLOR\tCATEGORY\tTEXT"
	}
	fmt.Fprintln(tw, header)
	for i := range results {
		r := &results[i]
		fmt.Fprintf(tw, "%d\t%s\t%.4f\t%.4f\t%.4f\t%s",
			i+1, r.ID(), r.Score(), r.Similarity(), r.Distance(), r.Candidate().Title())
		if bd := r.Breakdown(); debug && bd != nil {
			fmt.Fprintf(tw, "\t%.4f\t%.0f\t%.0f\t%.4f", bd.VectorScore, bd.ColorScore, bd.CategoryScore, bd.TextScore)
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush() //nolint:wrapcheck // writer error
}
