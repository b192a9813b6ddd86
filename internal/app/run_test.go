package app_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/shpitdev/ar-inbox-triage/internal/app"
	"github.com/shpitdev/ar-inbox-triage/internal/report"
	"github.com/shpitdev/ar-inbox-triage/pkg/triage/llm/llmtest"
	"github.com/shpitdev/ar-inbox-triage/pkg/triage/route"
	"github.com/shpitdev/ar-inbox-triage/pkg/triage/schema"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const corpus = `{
  "emails": [
    {"id": "e-1", "sender": "a@x.com", "subject": "Invoice #123 overdue", "body": "We already paid invoice 123 on 2024-01-05, amount $500"},
    {"id": "e-2", "sender": "b@y.com", "subject": "Charge", "body": "I want to contest charge on invoice #77, it's wrong"},
    {"id": "e-3", "sender": "c@z.com", "subject": "Hours", "body": "What are your business hours?"},
    {"id": "e-4", "sender": "d@w.com", "subject": "Broken", "body": "model will fail on this one"}
  ]
}`

type filed struct {
	mu    sync.Mutex
	names map[string]int
}

func (f *filed) handlers() route.Handlers {
	f.names = map[string]int{}
	mk := func(name string) route.Handler {
		return route.HandlerFunc{HandlerName: name, Fn: func(context.Context, schema.AgentOutput) error {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.names[name]++
			return nil
		}}
	}
	return route.Handlers{
		CashApplication: mk(route.CashApplicationHandler),
		Disputes:        mk(route.DisputesHandler),
		ARSupport:       mk(route.ARSupportHandler),
	}
}

func TestRunLocal(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "Sample Emails.json")
	output := filepath.Join(dir, "out", "report.csv")
	jsonl := filepath.Join(dir, "out", "outputs.jsonl")
	if err := os.WriteFile(input, []byte(corpus), 0o644); err != nil {
		t.Fatal(err)
	}

	gen := &llmtest.Scripted{
		Fail: func(user string) error {
			if strings.Contains(user, "model will fail") {
				return errors.New("model refused")
			}
			return nil
		},
	}
	f := &filed{}
	core, logs := observer.New(zap.InfoLevel)

	sum, err := app.RunLocal(context.Background(), app.Options{
		InputPath:  input,
		OutputPath: output,
		JSONLPath:  jsonl,
		Workers:    2,
		Logger:     zap.New(core),
	}, gen, f.handlers())
	if err != nil {
		t.Fatalf("RunLocal: %v", err)
	}
	if sum.Total != 4 || sum.OK != 3 || sum.Failed != 1 || !strings.HasPrefix(sum.RunID, "run-") {
		t.Fatalf("unexpected summary: %+v", sum)
	}
	for _, name := range []string{route.CashApplicationHandler, route.DisputesHandler, route.ARSupportHandler} {
		if f.names[name] != 1 {
			t.Fatalf("handler %s ran %d times, want 1", name, f.names[name])
		}
	}

	rf, err := os.Open(output)
	if err != nil {
		t.Fatalf("open report: %v", err)
	}
	defer func() { _ = rf.Close() }()
	rows, err := report.ReadCSV(rf)
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	wantCategories := []string{"Payment Claim", "Dispute", "General AR Request", ""}
	for i, row := range rows {
		if row.ID != []string{"e-1", "e-2", "e-3", "e-4"}[i] || row.Category != wantCategories[i] {
			t.Fatalf("row %d: %+v", i, row)
		}
	}
	if rows[0].InvoiceReferences != `["123"]` || rows[3].Status != report.StatusError {
		t.Fatalf("unexpected rows: %+v", rows)
	}

	b, err := os.ReadFile(jsonl)
	if err != nil {
		t.Fatalf("read jsonl: %v", err)
	}
	if n := strings.Count(string(b), "\n"); n != 3 {
		t.Fatalf("expected 3 jsonl lines, got %d", n)
	}

	for _, e := range logs.All() {
		if e.ContextMap()["run_id"] != sum.RunID {
			t.Fatalf("log %q is missing run_id", e.Message)
		}
	}
	if logs.FilterMessage("run complete").Len() != 1 {
		t.Fatalf("expected run complete log")
	}
}

func TestRunLocal_Limit(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "emails.json")
	if err := os.WriteFile(input, []byte(corpus), 0o644); err != nil {
		t.Fatal(err)
	}
	gen := &llmtest.Scripted{}
	f := &filed{}

	sum, err := app.RunLocal(context.Background(), app.Options{
		InputPath:  input,
		OutputPath: filepath.Join(dir, "report.csv"),
		Limit:      2,
	}, gen, f.handlers())
	if err != nil {
		t.Fatalf("RunLocal: %v", err)
	}
	if sum.Total != 2 || len(gen.Requests()) != 2 {
		t.Fatalf("limit not applied: %+v, %d requests", sum, len(gen.Requests()))
	}
}

func TestRunLocal_Errors(t *testing.T) {
	dir := t.TempDir()
	f := &filed{}
	tests := []struct {
		name string
		opts app.Options
		h    route.Handlers
	}{
		{name: "missing paths", opts: app.Options{}, h: f.handlers()},
		{name: "missing input", opts: app.Options{InputPath: filepath.Join(dir, "absent.json"), OutputPath: filepath.Join(dir, "r.csv")}, h: f.handlers()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := app.RunLocal(context.Background(), tt.opts, &llmtest.Scripted{}, tt.h); err == nil {
				t.Fatalf("expected error")
			}
		})
	}

	t.Run("missing handler", func(t *testing.T) {
		input := filepath.Join(dir, "emails.json")
		if err := os.WriteFile(input, []byte(corpus), 0o644); err != nil {
			t.Fatal(err)
		}
		h := f.handlers()
		h.Disputes = nil
		_, err := app.RunLocal(context.Background(), app.Options{InputPath: input, OutputPath: filepath.Join(dir, "r.csv")}, &llmtest.Scripted{}, h)
		if !errors.Is(err, route.ErrMissingHandler) {
			t.Fatalf("expected ErrMissingHandler, got %v", err)
		}
	})
}
