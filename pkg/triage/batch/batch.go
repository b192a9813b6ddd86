// Package batch runs the single-email pipeline over a list of emails and
// keeps results in input order.
package batch

import (
	"context"
	"time"

	"github.com/shpitdev/ar-inbox-triage/pkg/pipeline/redact"
	"github.com/shpitdev/ar-inbox-triage/pkg/pipeline/worker"
	"github.com/shpitdev/ar-inbox-triage/pkg/triage/schema"
	"go.uber.org/zap"
)

// DefaultRequestTimeout bounds one email's classification when no timeout is configured.
const DefaultRequestTimeout = 60 * time.Second

// Classifier is the per-email unit of work.
type Classifier interface {
	ClassifyAndRespond(ctx context.Context, emailText string) (*schema.AgentOutput, error)
}

type Options struct {
	// Workers caps concurrent classifications. Defaults to 10.
	Workers int
	// RequestTimeout bounds each email. Exceeding it counts as a failed
	// classification.
	RequestTimeout time.Duration

	Logger *zap.Logger
}

// Outcome is one slot of a batch run.
type Outcome struct {
	Input  string
	Output *schema.AgentOutput
	Err    error
}

type Coordinator struct {
	classifier Classifier
	opts       Options
}

func New(c Classifier, opts Options) *Coordinator {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Coordinator{classifier: c, opts: opts}
}

// ProcessBatch returns one entry per email, in input order. A nil entry means
// that email failed, timed out or was cancelled; the other entries are
// unaffected.
func (c *Coordinator) ProcessBatch(ctx context.Context, emails []string) []*schema.AgentOutput {
	outcomes := c.Run(ctx, emails)
	out := make([]*schema.AgentOutput, len(outcomes))
	for i, o := range outcomes {
		if o.Err == nil {
			out[i] = o.Output
		}
	}
	return out
}

// Run is ProcessBatch with the per-email errors kept for reporting.
func (c *Coordinator) Run(ctx context.Context, emails []string) []Outcome {
	logger := c.opts.Logger
	logger.Info("batch started",
		zap.Int("emails", len(emails)),
		zap.Int("workers", c.opts.Workers),
		zap.Duration("request_timeout", c.opts.RequestTimeout),
	)
	start := time.Now()

	completed := 0
	results, err := worker.ProcessAllWithCallback(ctx, emails, c.classifier.ClassifyAndRespond,
		func(res worker.Result[string, *schema.AgentOutput]) {
			completed++
			status := "ok"
			if res.Err != nil {
				status = "error"
			}
			logger.Debug("email completed",
				zap.Int("index", res.Index),
				zap.String("status", status),
				zap.Int("completed", completed),
				zap.Int("total", len(emails)),
			)
		},
		worker.Options{
			Workers:        c.opts.Workers,
			RequestTimeout: c.opts.RequestTimeout,
		},
	)

	out := make([]Outcome, len(results))
	okCount := 0
	for i, res := range results {
		out[i] = Outcome{Input: res.Input, Err: res.Err}
		if res.Err == nil && res.Output != nil {
			out[i].Output = res.Output
			okCount++
		}
	}

	fields := []zap.Field{
		zap.Int("emails", len(emails)),
		zap.Int("ok", okCount),
		zap.Int("failed", len(emails)-okCount),
		zap.Duration("duration", time.Since(start).Round(time.Millisecond)),
	}
	if err != nil {
		logger.Warn("batch cancelled", append(fields, zap.String("error", redact.Secrets(err.Error())))...)
		return out
	}
	logger.Info("batch complete", fields...)
	return out
}
