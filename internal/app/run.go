// Package app wires configuration, the model, the router and the batch
// coordinator into a single local run.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shpitdev/ar-inbox-triage/internal/logging"
	"github.com/shpitdev/ar-inbox-triage/internal/report"
	localio "github.com/shpitdev/ar-inbox-triage/pkg/pipeline/io/local"
	"github.com/shpitdev/ar-inbox-triage/pkg/triage/batch"
	"github.com/shpitdev/ar-inbox-triage/pkg/triage/classify"
	"github.com/shpitdev/ar-inbox-triage/pkg/triage/llm"
	"github.com/shpitdev/ar-inbox-triage/pkg/triage/route"
	"go.uber.org/zap"
)

type Options struct {
	InputPath  string
	OutputPath string
	// JSONLPath, if set, receives one AgentOutput per successful email.
	JSONLPath string
	// Limit processes only the first Limit emails when > 0.
	Limit int

	CompanyAddress string
	Workers        int
	RequestTimeout time.Duration

	Logger *zap.Logger
}

// Summary describes a finished run.
type Summary struct {
	RunID  string
	Total  int
	OK     int
	Failed int
}

// RunLocal classifies every email in the input file, dispatches each result
// to its handler and writes the report. Per-email failures are recorded in
// the report and do not fail the run.
func RunLocal(ctx context.Context, opts Options, gen llm.Generator, handlers route.Handlers) (Summary, error) {
	if strings.TrimSpace(opts.InputPath) == "" || strings.TrimSpace(opts.OutputPath) == "" {
		return Summary{}, errors.New("input and output paths are required")
	}
	base := opts.Logger
	if base == nil {
		base = zap.NewNop()
	}
	runID := "run-" + uuid.NewString()
	logger := logging.WithRun(base, runID)
	runStart := time.Now()

	emails, err := localio.ReadEmailsFile(opts.InputPath)
	if err != nil {
		return Summary{}, err
	}
	if opts.Limit > 0 && opts.Limit < len(emails) {
		emails = emails[:opts.Limit]
	}
	logger.Info("run started",
		zap.String("input", opts.InputPath),
		zap.String("output", opts.OutputPath),
		zap.Int("emails", len(emails)),
	)

	router, err := route.New(handlers, route.WithLogger(logger))
	if err != nil {
		return Summary{}, err
	}
	classifier, err := classify.New(gen, router, classify.Config{
		CompanyAddress: opts.CompanyAddress,
		Logger:         logger,
	})
	if err != nil {
		return Summary{}, err
	}
	coord := batch.New(classifier, batch.Options{
		Workers:        opts.Workers,
		RequestTimeout: opts.RequestTimeout,
		Logger:         logger,
	})

	outcomes := coord.Run(ctx, emails)
	rows := report.Rows(outcomes)

	if err := writeFile(opts.OutputPath, func(f *os.File) error { return report.WriteCSV(f, rows) }); err != nil {
		return Summary{}, fmt.Errorf("write report: %w", err)
	}
	if opts.JSONLPath != "" {
		if err := writeFile(opts.JSONLPath, func(f *os.File) error { return report.WriteJSONL(f, outcomes) }); err != nil {
			return Summary{}, fmt.Errorf("write outputs: %w", err)
		}
	}

	ok, failed := report.Summary(rows)
	logger.Info("run complete",
		zap.Int("ok", ok),
		zap.Int("failed", failed),
		zap.Duration("duration", time.Since(runStart).Round(time.Millisecond)),
	)
	sum := Summary{RunID: runID, Total: len(rows), OK: ok, Failed: failed}
	if err := ctx.Err(); err != nil {
		return sum, err
	}
	return sum, nil
}

func writeFile(path string, write func(*os.File) error) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
	}()
	if err := write(f); err != nil {
		return err
	}
	return f.Close()
}
