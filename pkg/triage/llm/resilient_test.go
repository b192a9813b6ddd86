package llm_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shpitdev/ar-inbox-triage/pkg/triage/llm"
	"github.com/shpitdev/ar-inbox-triage/pkg/triage/schema"
)

func fastOpts(maxRetries int) llm.Options {
	return llm.Options{
		MaxRetries:        maxRetries,
		BackoffInitial:    1 * time.Millisecond,
		BackoffMax:        2 * time.Millisecond,
		BackoffJitterFrac: 0,
	}
}

type countingGenerator struct {
	mu    sync.Mutex
	calls int
	fn    func(call int) (llm.Response, error)
}

func (g *countingGenerator) Generate(_ context.Context, _ llm.Request) (llm.Response, error) {
	g.mu.Lock()
	g.calls++
	call := g.calls
	g.mu.Unlock()
	return g.fn(call)
}

func (g *countingGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func TestResilient_RetriesTransient(t *testing.T) {
	t.Parallel()

	g := &countingGenerator{fn: func(call int) (llm.Response, error) {
		if call <= 2 {
			return llm.Response{}, &llm.TransientError{Err: errors.New("try again")}
		}
		return llm.Response{JSON: []byte(`{}`)}, nil
	}}

	resp, err := llm.NewResilient(g, fastOpts(3)).Generate(context.Background(), llm.Request{User: "hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(resp.JSON) != "{}" {
		t.Fatalf("unexpected response: %q", resp.JSON)
	}
	if g.Calls() != 3 {
		t.Fatalf("expected 3 calls, got %d", g.Calls())
	}
}

func TestResilient_DoesNotRetryPermanent(t *testing.T) {
	t.Parallel()

	g := &countingGenerator{fn: func(int) (llm.Response, error) {
		return llm.Response{}, errors.New("permanent")
	}}

	_, err := llm.NewResilient(g, fastOpts(10)).Generate(context.Background(), llm.Request{})
	if err == nil || err.Error() != "permanent" {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if g.Calls() != 1 {
		t.Fatalf("expected 1 call, got %d", g.Calls())
	}
}

func TestResilient_RespectsPerErrorRetryCap(t *testing.T) {
	t.Parallel()

	g := &countingGenerator{fn: func(int) (llm.Response, error) {
		return llm.Response{}, &llm.LimitedTransientError{
			Err:          errors.New("cancelled"),
			ExtraRetries: 1,
		}
	}}

	_, err := llm.NewResilient(g, fastOpts(10)).Generate(context.Background(), llm.Request{})
	if err == nil {
		t.Fatalf("expected error")
	}
	if g.Calls() != 2 {
		t.Fatalf("expected 2 calls (1 initial + 1 retry), got %d", g.Calls())
	}
}

func TestResilient_RetriesInvalidOutputOnce(t *testing.T) {
	t.Parallel()

	g := &countingGenerator{fn: func(int) (llm.Response, error) {
		return llm.Response{JSON: []byte(`{"category":"Refund"}`)}, nil
	}}
	req := llm.Request{
		Validate: func(raw []byte) error {
			_, err := schema.DecodeAgentOutput(raw)
			return err
		},
	}

	_, err := llm.NewResilient(g, fastOpts(5)).Generate(context.Background(), req)
	if !errors.Is(err, schema.ErrSchemaValidation) {
		t.Fatalf("expected schema validation error, got %v", err)
	}
	if g.Calls() != 2 {
		t.Fatalf("expected 2 calls, got %d", g.Calls())
	}
}

func TestResilient_StopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	g := &countingGenerator{fn: func(int) (llm.Response, error) {
		cancel()
		return llm.Response{}, &llm.TransientError{Err: errors.New("overloaded")}
	}}

	_, err := llm.NewResilient(g, fastOpts(5)).Generate(ctx, llm.Request{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if g.Calls() != 1 {
		t.Fatalf("expected 1 call, got %d", g.Calls())
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "plain", err: errors.New("x"), want: false},
		{name: "transient", err: &llm.TransientError{Err: errors.New("x")}, want: true},
		{name: "limited", err: &llm.LimitedTransientError{Err: errors.New("x")}, want: true},
		{name: "deadline", err: context.DeadlineExceeded, want: true},
		{name: "canceled", err: context.Canceled, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := llm.IsTransient(tt.err); got != tt.want {
				t.Fatalf("IsTransient(%v)=%v want=%v", tt.err, got, tt.want)
			}
		})
	}
}
