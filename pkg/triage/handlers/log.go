// Package handlers holds the downstream filers the router dispatches to.
package handlers

import (
	"context"

	"github.com/shpitdev/ar-inbox-triage/pkg/triage/route"
	"github.com/shpitdev/ar-inbox-triage/pkg/triage/schema"
	"go.uber.org/zap"
)

// LogFiler records each AgentOutput as a structured log line. It is the
// default when no message broker is configured.
type LogFiler struct {
	name   string
	logger *zap.Logger
}

func NewLogFiler(name string, logger *zap.Logger) *LogFiler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogFiler{name: name, logger: logger}
}

func (f *LogFiler) Name() string {
	return f.name
}

func (f *LogFiler) Handle(ctx context.Context, out schema.AgentOutput) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ci := out.CustomerInformation()
	reply := out.ResponseEmail()
	f.logger.Info("email filed",
		zap.String("handler", f.name),
		zap.String("category", string(out.Category())),
		zap.String("customer", ci.Name),
		zap.Strings("invoice_references", ci.InvoiceReferences),
		zap.Strings("amounts", ci.Amounts),
		zap.Strings("dates", ci.Dates),
		zap.String("reply_to", reply.Receiver),
		zap.String("reply_subject", reply.Subject),
	)
	return nil
}

// LogHandlers binds a LogFiler to every category.
func LogHandlers(logger *zap.Logger) route.Handlers {
	return route.Handlers{
		CashApplication: NewLogFiler(route.CashApplicationHandler, logger),
		Disputes:        NewLogFiler(route.DisputesHandler, logger),
		ARSupport:       NewLogFiler(route.ARSupportHandler, logger),
	}
}
