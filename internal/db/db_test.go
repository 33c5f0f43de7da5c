package db

import (
	"context"
	"errors"
	"testing"
	"time"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestWaitForReady_EventuallyReady(t *testing.T) {
	calls := 0
	p := pingerFunc(func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("loading")
		}
		return nil
	})

	if err := WaitForReady(context.Background(), p, 2*time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestWaitForReady_Timeout(t *testing.T) {
	p := pingerFunc(func(context.Context) error { return errors.New("down") })

	err := WaitForReady(context.Background(), p, 50*time.Millisecond)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
	var dbErr *Error
	if !errors.As(err, &dbErr) || dbErr.Op != OpPing {
		t.Errorf("expected db.Error{Op: PING}, got %v", err)
	}
}
