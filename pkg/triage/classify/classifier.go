// Package classify turns one raw customer email into a validated AgentOutput
// with a single structured-generation request, then hands the result to the router.
package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/shpitdev/ar-inbox-triage/internal/metrics"
	"github.com/shpitdev/ar-inbox-triage/pkg/pipeline/redact"
	"github.com/shpitdev/ar-inbox-triage/pkg/triage/llm"
	"github.com/shpitdev/ar-inbox-triage/pkg/triage/schema"
	"go.uber.org/zap"
)

// DefaultCompanyAddress is the sender of every drafted reply unless configured otherwise.
const DefaultCompanyAddress = "info@transformance.com"

var (
	ErrEmptyEmail       = errors.New("classify: empty email")
	ErrGenerationFailed = errors.New("classify: generation failed")
)

// GenerationFailure is the single error surfaced when no valid AgentOutput
// could be produced: the capability failed, timed out, or returned output
// that does not satisfy the schema.
type GenerationFailure struct {
	Err error
}

func (e *GenerationFailure) Error() string {
	if e == nil || e.Err == nil {
		return ErrGenerationFailed.Error()
	}
	return ErrGenerationFailed.Error() + ": " + e.Err.Error()
}

func (e *GenerationFailure) Unwrap() []error {
	if e == nil {
		return nil
	}
	return []error{ErrGenerationFailed, e.Err}
}

// Dispatcher routes a committed AgentOutput.
type Dispatcher interface {
	Dispatch(ctx context.Context, out schema.AgentOutput) error
}

type Config struct {
	// CompanyAddress must be the sender of every drafted reply.
	CompanyAddress string
	Logger         *zap.Logger
}

type Classifier struct {
	gen     llm.Generator
	router  Dispatcher
	company string
	system  string
	schema  *schema.Node
	logger  *zap.Logger
}

func New(gen llm.Generator, router Dispatcher, cfg Config) (*Classifier, error) {
	if gen == nil {
		return nil, errors.New("classify: generator is required")
	}
	if router == nil {
		return nil, errors.New("classify: router is required")
	}
	company := strings.TrimSpace(cfg.CompanyAddress)
	if company == "" {
		company = DefaultCompanyAddress
	}
	if _, err := mail.ParseAddress(company); err != nil {
		return nil, fmt.Errorf("classify: invalid company address %q: %w", company, err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{
		gen:     gen,
		router:  router,
		company: company,
		system:  buildInstructions(company),
		schema:  schema.AgentOutputSchema(company),
		logger:  logger,
	}, nil
}

// Instructions returns the system instructions sent with every request.
func (c *Classifier) Instructions() string {
	return c.system
}

// ClassifyAndRespond classifies one email, extracts customer information and
// drafts a reply. On success the output is dispatched before returning; a
// dispatch failure is logged and does not change the returned output. On
// failure the output is nil and the error is a *GenerationFailure (or
// ErrEmptyEmail for blank input).
func (c *Classifier) ClassifyAndRespond(ctx context.Context, emailText string) (*schema.AgentOutput, error) {
	text := strings.TrimSpace(emailText)
	if text == "" {
		return nil, ErrEmptyEmail
	}

	in := peekInbound(text)
	logger := c.logger.With(zap.String("email_id", in.ID))
	logger.Info("classification started")

	req := llm.Request{
		System: c.system,
		User:   text,
		Schema: c.schema,
		Validate: func(raw []byte) error {
			_, err := c.decode(raw, in.Sender)
			return err
		},
	}

	start := time.Now()
	resp, err := c.gen.Generate(ctx, req)
	var out schema.AgentOutput
	if err == nil {
		out, err = c.decode(resp.JSON, in.Sender)
	}
	if err != nil {
		metrics.ObserveGeneration("error", time.Since(start))
		metrics.IncEmailProcessed("failed")
		logger.Warn("classification failed",
			zap.Duration("duration", time.Since(start)),
			zap.String("error", redact.Secrets(err.Error())),
		)
		return nil, &GenerationFailure{Err: err}
	}
	metrics.ObserveGeneration("ok", time.Since(start))
	metrics.IncEmailProcessed("ok")
	metrics.IncClassified(string(out.Category()))
	logger.Info("classification succeeded",
		zap.String("category", string(out.Category())),
		zap.String("model", resp.Model),
		zap.Duration("duration", time.Since(start)),
	)

	if err := c.router.Dispatch(ctx, out); err != nil {
		logger.Warn("dispatch failed", zap.String("category", string(out.Category())), zap.Error(err))
	}
	return &out, nil
}

// decode validates the structured output and the reply addressing rules.
func (c *Classifier) decode(raw []byte, inboundSender string) (schema.AgentOutput, error) {
	out, err := schema.DecodeAgentOutput(raw)
	if err != nil {
		return schema.AgentOutput{}, err
	}
	reply := out.ResponseEmail()
	if !sameAddress(reply.Sender, c.company) {
		return schema.AgentOutput{}, &schema.ValidationError{
			Field:  "response_email.sender",
			Reason: fmt.Sprintf("must be the company address %s (got %q)", c.company, reply.Sender),
		}
	}
	if inboundSender != "" && !sameAddress(reply.Receiver, inboundSender) {
		return schema.AgentOutput{}, &schema.ValidationError{
			Field:  "response_email.receiver",
			Reason: fmt.Sprintf("must be the original sender %s (got %q)", inboundSender, reply.Receiver),
		}
	}
	return out, nil
}

type inboundPeek struct {
	ID     string `json:"id"`
	Sender string `json:"sender"`
}

// peekInbound pulls the id and sender out of a JSON-serialized email. Plain
// text input yields zero values.
func peekInbound(text string) inboundPeek {
	var p inboundPeek
	if !strings.HasPrefix(text, "{") {
		return p
	}
	if err := json.Unmarshal([]byte(text), &p); err != nil {
		return inboundPeek{}
	}
	p.ID = strings.TrimSpace(p.ID)
	p.Sender = strings.TrimSpace(p.Sender)
	return p
}

func sameAddress(a, b string) bool {
	return normalizeAddress(a) == normalizeAddress(b)
}

func normalizeAddress(s string) string {
	s = strings.TrimSpace(s)
	if addr, err := mail.ParseAddress(s); err == nil {
		s = addr.Address
	}
	return strings.ToLower(s)
}
