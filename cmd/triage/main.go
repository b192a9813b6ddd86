package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shpitdev/ar-inbox-triage/internal/app"
	"github.com/shpitdev/ar-inbox-triage/internal/config"
	"github.com/shpitdev/ar-inbox-triage/internal/logging"
	"github.com/shpitdev/ar-inbox-triage/internal/metrics"
	"github.com/shpitdev/ar-inbox-triage/internal/version"
	"github.com/shpitdev/ar-inbox-triage/pkg/pipeline/redact"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// exitError carries the process exit code: 2 for configuration problems,
// 1 for run failures.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func configErr(format string, args ...any) error {
	return &exitError{code: 2, err: fmt.Errorf(format, args...)}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	_, _ = fmt.Fprintf(stderr, "error: %s\n", redact.Secrets(err.Error()))
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	// Unknown commands and bad flags come back from cobra unwrapped.
	return 2
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "triage",
		Short:         "Classify accounts-receivable emails, draft replies and file them downstream",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version.Current)
			return err
		},
	}
}

type runFlags struct {
	configPath string
	envFile    string
	input      string
	output     string
	jsonl      string
	limit      int

	workers        int
	maxRetries     int
	requestTimeout time.Duration
	rateLimitRPS   float64
	model          string
	baseURL        string
	company        string
	amqpURL        string
	logLevel       string
	logFormat      string
	metricsAddr    string
}

func newRunCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Classify every email in a local corpus and write a report",
		Example: `  triage run --input "data/Sample Emails.json" --output out/report.csv --limit 5
  triage run --input emails.csv --output report.csv --jsonl outputs.jsonl --workers 8`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runE(cmd, f)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.configPath, "config", "", "YAML config file")
	fl.StringVar(&f.envFile, "env-file", ".env", "Env file loaded before reading the environment (ignored if missing)")
	fl.StringVar(&f.input, "input", "", "Input corpus: JSON {\"emails\": [...]} or CSV with a body column")
	fl.StringVar(&f.output, "output", "", "Output report CSV path")
	fl.StringVar(&f.jsonl, "jsonl", "", "Optional JSONL path for the structured outputs")
	fl.IntVar(&f.limit, "limit", 0, "Process only the first N emails (0 = all)")
	fl.IntVar(&f.workers, "workers", 0, "Concurrent classifications (env: WORKERS)")
	fl.IntVar(&f.maxRetries, "max-retries", 0, "Retries per email for transient model failures (env: MAX_RETRIES)")
	fl.DurationVar(&f.requestTimeout, "request-timeout", 0, "Per-email timeout (env: REQUEST_TIMEOUT)")
	fl.Float64Var(&f.rateLimitRPS, "rate-limit-rps", 0, "Shared model request rate limit, 0 disables (env: RATE_LIMIT_RPS)")
	fl.StringVar(&f.model, "gemini-model", "", "Gemini model name (env: GEMINI_MODEL)")
	fl.StringVar(&f.baseURL, "gemini-base-url", "", "Gemini API base URL override (env: GEMINI_BASE_URL)")
	fl.StringVar(&f.company, "company-address", "", "Sender address of drafted replies (env: COMPANY_ADDRESS)")
	fl.StringVar(&f.amqpURL, "amqp-url", "", "File results on this AMQP broker instead of the log (env: AMQP_URL)")
	fl.StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error (env: LOG_LEVEL)")
	fl.StringVar(&f.logFormat, "log-format", "", "json or console (env: LOG_FORMAT)")
	fl.StringVar(&f.metricsAddr, "metrics-addr", "", "Serve Prometheus /metrics on this address during the run (env: METRICS_ADDR)")
	return cmd
}

// applyFlags overrides cfg with every flag the user set explicitly.
func applyFlags(cmd *cobra.Command, f runFlags, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("workers") {
		cfg.Pipeline.Workers = f.workers
	}
	if changed("max-retries") {
		cfg.Pipeline.MaxRetries = f.maxRetries
	}
	if changed("request-timeout") {
		cfg.Pipeline.RequestTimeout = f.requestTimeout
	}
	if changed("rate-limit-rps") {
		cfg.Pipeline.RateLimitRPS = f.rateLimitRPS
	}
	if changed("gemini-model") {
		cfg.Gemini.Model = f.model
	}
	if changed("gemini-base-url") {
		cfg.Gemini.BaseURL = f.baseURL
	}
	if changed("company-address") {
		cfg.CompanyAddress = f.company
	}
	if changed("amqp-url") {
		cfg.AMQP.URL = f.amqpURL
	}
	if changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if changed("log-format") {
		cfg.Log.Format = f.logFormat
	}
	if changed("metrics-addr") {
		cfg.MetricsAddr = f.metricsAddr
	}
}

func runE(cmd *cobra.Command, f runFlags) error {
	ctx := cmd.Context()
	if f.input == "" || f.output == "" {
		return configErr("run requires --input and --output")
	}
	if f.limit < 0 {
		return configErr("--limit must be >= 0")
	}

	cfg, err := config.Load(f.configPath, f.envFile)
	if err != nil {
		return configErr("config error: %w", err)
	}
	applyFlags(cmd, f, &cfg)
	if err := cfg.Validate(); err != nil {
		return configErr("config error: %w", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return configErr("config error: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	gen, err := app.NewGenerator(ctx, cfg, logger)
	if err != nil {
		return configErr("gemini config error: %w", err)
	}
	handlers, closer, err := app.NewHandlers(cfg, logger)
	if err != nil {
		return &exitError{code: 1, err: fmt.Errorf("amqp: %w", err)}
	}
	defer func() { _ = closer.Close() }()

	if cfg.MetricsAddr != "" {
		stop := serveMetrics(cfg.MetricsAddr, logger)
		defer stop()
	}

	sum, err := app.RunLocal(ctx, app.Options{
		InputPath:      f.input,
		OutputPath:     f.output,
		JSONLPath:      f.jsonl,
		Limit:          f.limit,
		CompanyAddress: cfg.CompanyAddress,
		Workers:        cfg.Pipeline.Workers,
		RequestTimeout: cfg.Pipeline.RequestTimeout,
		Logger:         logger,
	}, gen, handlers)
	if err != nil {
		return &exitError{code: 1, err: fmt.Errorf("local run failed: %w", err)}
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: %d emails, %d ok, %d failed -> %s\n", sum.RunID, sum.Total, sum.OK, sum.Failed, f.output)
	return nil
}

func serveMetrics(addr string, logger *zap.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", addr))
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
