// Package route dispatches a validated AgentOutput to exactly one
// category-specific handler.
package route

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shpitdev/ar-inbox-triage/internal/metrics"
	"github.com/shpitdev/ar-inbox-triage/pkg/triage/schema"
	"go.uber.org/zap"
)

// Handler names used in logs, metrics and AMQP routing.
const (
	CashApplicationHandler = "cashApplicationHandler"
	DisputesHandler        = "disputesHandler"
	ARSupportHandler       = "arSupportHandler"
)

// Handler files one AgentOutput with a downstream system. Its side effects are
// its own business; the router only reports its error.
type Handler interface {
	Name() string
	Handle(ctx context.Context, out schema.AgentOutput) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc struct {
	HandlerName string
	Fn          func(ctx context.Context, out schema.AgentOutput) error
}

func (h HandlerFunc) Name() string {
	return h.HandlerName
}

func (h HandlerFunc) Handle(ctx context.Context, out schema.AgentOutput) error {
	return h.Fn(ctx, out)
}

// Handlers binds each category to its handler.
type Handlers struct {
	CashApplication Handler // Payment Claim
	Disputes        Handler // Dispute
	ARSupport       Handler // General AR Request
}

var ErrMissingHandler = errors.New("route: category has no handler")

// UnroutableCategoryError is returned when an AgentOutput carries a category
// outside the closed set. No handler runs.
type UnroutableCategoryError struct {
	Category schema.Category
}

func (e *UnroutableCategoryError) Error() string {
	return fmt.Sprintf("route: unroutable category %q", string(e.Category))
}

// HandlerError wraps a failure reported by a handler.
type HandlerError struct {
	Handler string
	Err     error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("route: handler %s: %v", e.Handler, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// Router is stateless apart from its immutable category table.
type Router struct {
	table  map[schema.Category]Handler
	logger *zap.Logger
}

type Option func(*Router)

func WithLogger(l *zap.Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

// New builds a Router and fails if any category in the closed set lacks a handler.
func New(h Handlers, opts ...Option) (*Router, error) {
	table := make(map[schema.Category]Handler, len(schema.Categories()))
	for _, c := range schema.Categories() {
		handler := h.forCategory(c)
		if handler == nil {
			return nil, fmt.Errorf("%w: %q", ErrMissingHandler, string(c))
		}
		table[c] = handler
	}
	r := &Router{table: table, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (h Handlers) forCategory(c schema.Category) Handler {
	switch c {
	case schema.CategoryPaymentClaim:
		return h.CashApplication
	case schema.CategoryDispute:
		return h.Disputes
	case schema.CategoryGeneralARRequest:
		return h.ARSupport
	default:
		return nil
	}
}

// HandlerFor returns the handler bound to c.
func (r *Router) HandlerFor(c schema.Category) (Handler, error) {
	h, ok := r.table[c]
	if !ok {
		return nil, &UnroutableCategoryError{Category: c}
	}
	return h, nil
}

// Dispatch runs exactly one handler for out.Category(). Calling it twice runs
// the handler twice.
func (r *Router) Dispatch(ctx context.Context, out schema.AgentOutput) error {
	h, err := r.HandlerFor(out.Category())
	if err != nil {
		metrics.IncDispatch("none", "unroutable")
		r.logger.Error("dispatch failed: unroutable category", zap.String("category", string(out.Category())))
		return err
	}

	r.logger.Info("dispatch routed",
		zap.String("handler", h.Name()),
		zap.String("category", string(out.Category())),
		zap.String("reply_id", out.ResponseEmail().ID),
	)
	start := time.Now()
	if err := h.Handle(ctx, out); err != nil {
		metrics.IncDispatch(h.Name(), "error")
		r.logger.Warn("handler failed",
			zap.String("handler", h.Name()),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return &HandlerError{Handler: h.Name(), Err: err}
	}
	metrics.IncDispatch(h.Name(), "ok")
	return nil
}
