package route_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shpitdev/ar-inbox-triage/pkg/triage/route"
	"github.com/shpitdev/ar-inbox-triage/pkg/triage/schema"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recorder struct {
	mu    sync.Mutex
	calls map[string][]schema.AgentOutput
	fail  map[string]error
}

func newRecorder() *recorder {
	return &recorder{calls: make(map[string][]schema.AgentOutput), fail: make(map[string]error)}
}

func (r *recorder) handler(name string) route.Handler {
	return route.HandlerFunc{
		HandlerName: name,
		Fn: func(_ context.Context, out schema.AgentOutput) error {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.calls[name] = append(r.calls[name], out)
			return r.fail[name]
		},
	}
}

func (r *recorder) handlers() route.Handlers {
	return route.Handlers{
		CashApplication: r.handler(route.CashApplicationHandler),
		Disputes:        r.handler(route.DisputesHandler),
		ARSupport:       r.handler(route.ARSupportHandler),
	}
}

func (r *recorder) counts() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int, len(r.calls))
	for k, v := range r.calls {
		out[k] = len(v)
	}
	return out
}

func output(t *testing.T, c schema.Category) schema.AgentOutput {
	t.Helper()
	reply, err := schema.NewEmailRecord("r1", "2024-01-06T10:00:00Z", "info@transformance.com", "a@x.com", "Re: hello", "Thanks")
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	info, err := schema.NewCustomerInformation("Alice", nil, nil, nil, "")
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	out, err := schema.NewAgentOutput(reply, c, info)
	if err != nil {
		t.Fatalf("output: %v", err)
	}
	return out
}

func TestDispatch_InvokesExactlyOneHandler(t *testing.T) {
	tests := []struct {
		category schema.Category
		want     string
	}{
		{category: schema.CategoryPaymentClaim, want: route.CashApplicationHandler},
		{category: schema.CategoryDispute, want: route.DisputesHandler},
		{category: schema.CategoryGeneralARRequest, want: route.ARSupportHandler},
	}
	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			rec := newRecorder()
			r, err := route.New(rec.handlers())
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			out := output(t, tt.category)
			if err := r.Dispatch(context.Background(), out); err != nil {
				t.Fatalf("Dispatch: %v", err)
			}
			counts := rec.counts()
			if len(counts) != 1 || counts[tt.want] != 1 {
				t.Fatalf("expected exactly one call to %s, got %v", tt.want, counts)
			}
			got := rec.calls[tt.want][0]
			if got.Category() != tt.category || got.ResponseEmail().ID != "r1" {
				t.Fatalf("handler did not receive the full output: %#v", got)
			}
		})
	}
}

func TestNew_EveryCategoryHasHandler(t *testing.T) {
	r, err := route.New(newRecorder().handlers())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, c := range schema.Categories() {
		if _, err := r.HandlerFor(c); err != nil {
			t.Fatalf("category %q has no handler: %v", c, err)
		}
	}
}

func TestNew_MissingHandler(t *testing.T) {
	h := newRecorder().handlers()
	h.Disputes = nil
	_, err := route.New(h)
	if !errors.Is(err, route.ErrMissingHandler) {
		t.Fatalf("expected ErrMissingHandler, got %v", err)
	}
}

func TestDispatch_UnroutableCategory(t *testing.T) {
	rec := newRecorder()
	r, err := route.New(rec.handlers())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// The zero value bypasses the schema constructors.
	err = r.Dispatch(context.Background(), schema.AgentOutput{})
	var ue *route.UnroutableCategoryError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UnroutableCategoryError, got %v", err)
	}
	if n := len(rec.counts()); n != 0 {
		t.Fatalf("expected no handler calls, got %d", n)
	}
}

func TestDispatch_TwiceRunsTwice(t *testing.T) {
	rec := newRecorder()
	r, err := route.New(rec.handlers())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out := output(t, schema.CategoryDispute)
	for i := 0; i < 2; i++ {
		if err := r.Dispatch(context.Background(), out); err != nil {
			t.Fatalf("Dispatch #%d: %v", i, err)
		}
	}
	if got := rec.counts()[route.DisputesHandler]; got != 2 {
		t.Fatalf("expected 2 calls, got %d", got)
	}
}

func TestDispatch_HandlerErrorIsWrapped(t *testing.T) {
	rec := newRecorder()
	boom := errors.New("crm unavailable")
	rec.fail[route.ARSupportHandler] = boom

	core, logs := observer.New(zap.InfoLevel)
	r, err := route.New(rec.handlers(), route.WithLogger(zap.New(core)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	err = r.Dispatch(context.Background(), output(t, schema.CategoryGeneralARRequest))
	var he *route.HandlerError
	if !errors.As(err, &he) || he.Handler != route.ARSupportHandler {
		t.Fatalf("expected HandlerError from arSupportHandler, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
	if logs.FilterMessage("dispatch routed").Len() != 1 {
		t.Fatalf("expected one 'dispatch routed' log, got %v", logs.All())
	}
	if logs.FilterMessage("handler failed").Len() != 1 {
		t.Fatalf("expected one 'handler failed' log, got %v", logs.All())
	}
}
