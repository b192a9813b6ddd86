// Package llm is the boundary to the language-model capability: one request
// carries system instructions, the user turn and the required output schema,
// and the capability returns schema-conformant JSON or an error.
package llm

import (
	"context"

	"github.com/shpitdev/ar-inbox-triage/pkg/triage/schema"
)

// Request is a single structured-generation call. Each email gets its own
// Request value; nothing is shared between calls.
type Request struct {
	// System holds the fixed instructions for the model.
	System string
	// User is the user turn, normally the serialized email.
	User string
	// Schema is the structured output the response must conform to.
	Schema *schema.Node
	// Validate optionally checks the raw response. A failure is retried once
	// by Resilient before being returned.
	Validate func(raw []byte) error
}

// Response is the raw structured output plus audit fields.
type Response struct {
	JSON  []byte
	Model string
}

// Generator performs structured generation.
type Generator interface {
	Generate(ctx context.Context, req Request) (Response, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, req Request) (Response, error)

func (f GeneratorFunc) Generate(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// TransientError marks an error as retryable.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	if e == nil || e.Err == nil {
		return "transient error"
	}
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// LimitedTransientError is retryable, but at most ExtraRetries more times
// regardless of the configured retry budget.
type LimitedTransientError struct {
	Err          error
	ExtraRetries int
}

func (e *LimitedTransientError) Error() string {
	if e == nil || e.Err == nil {
		return "transient error"
	}
	return e.Err.Error()
}

func (e *LimitedTransientError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *LimitedTransientError) MaxExtraRetries() int {
	if e == nil {
		return 0
	}
	return e.ExtraRetries
}
