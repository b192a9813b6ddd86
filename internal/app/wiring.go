package app

import (
	"context"
	"io"

	"github.com/shpitdev/ar-inbox-triage/internal/config"
	"github.com/shpitdev/ar-inbox-triage/pkg/triage/handlers"
	"github.com/shpitdev/ar-inbox-triage/pkg/triage/handlers/amqp"
	"github.com/shpitdev/ar-inbox-triage/pkg/triage/llm"
	"github.com/shpitdev/ar-inbox-triage/pkg/triage/llm/gemini"
	"github.com/shpitdev/ar-inbox-triage/pkg/triage/route"
	"go.uber.org/zap"
)

// NewGenerator returns the Gemini generator behind the shared rate limiter
// and retry policy.
func NewGenerator(ctx context.Context, cfg config.Config, logger *zap.Logger) (llm.Generator, error) {
	g, err := gemini.New(ctx, gemini.Config{
		APIKey:      cfg.Gemini.APIKey,
		Model:       cfg.Gemini.Model,
		BaseURL:     cfg.Gemini.BaseURL,
		Temperature: cfg.Gemini.Temperature,
	})
	if err != nil {
		return nil, err
	}
	return llm.NewResilient(g, llm.Options{
		MaxRetries:        cfg.Pipeline.MaxRetries,
		RateLimitRPS:      cfg.Pipeline.RateLimitRPS,
		BackoffJitterFrac: 0.2,
		Logger:            logger,
	}), nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewHandlers files to AMQP when a broker URL is configured and to the log
// otherwise. The returned closer releases the broker connection.
func NewHandlers(cfg config.Config, logger *zap.Logger) (route.Handlers, io.Closer, error) {
	if cfg.AMQP.URL == "" {
		return handlers.LogHandlers(logger), nopCloser{}, nil
	}
	conn, err := amqp.Dial(cfg.AMQP.URL, cfg.AMQP.Exchange)
	if err != nil {
		return route.Handlers{}, nil, err
	}
	logger.Info("amqp filing enabled", zap.String("exchange", conn.Exchange()))
	return amqp.Handlers(conn, conn.Exchange(), logger), conn, nil
}
