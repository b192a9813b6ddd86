package gemini

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shpitdev/ar-inbox-triage/pkg/triage/llm"
	"github.com/shpitdev/ar-inbox-triage/pkg/triage/schema"
	"google.golang.org/genai"
)

type timeoutNetErr struct{}

func (timeoutNetErr) Error() string   { return "i/o timeout" }
func (timeoutNetErr) Timeout() bool   { return true }
func (timeoutNetErr) Temporary() bool { return false }

func TestClassifyErr(t *testing.T) {
	tests := []struct {
		name          string
		in            error
		wantTransient bool
	}{
		{name: "nil", in: nil, wantTransient: false},
		{name: "api_429", in: genai.APIError{Code: 429}, wantTransient: true},
		{name: "api_503", in: genai.APIError{Code: 503}, wantTransient: true},
		{name: "api_400", in: genai.APIError{Code: 400}, wantTransient: false},
		{name: "net_timeout", in: timeoutNetErr{}, wantTransient: true},
		{name: "wrapped_api_429", in: errors.New(genai.APIError{Code: 429}.Error()), wantTransient: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyErr(tt.in)
			var te *llm.TransientError
			isTransient := errors.As(got, &te)
			if isTransient != tt.wantTransient {
				t.Fatalf("transient=%v want=%v (err=%T %v)", isTransient, tt.wantTransient, got, got)
			}
		})
	}
}

func TestToGenaiSchema(t *testing.T) {
	got := toGenaiSchema(schema.AgentOutputSchema("info@transformance.com"))
	if got.Type != genai.TypeObject {
		t.Fatalf("root type=%q", got.Type)
	}
	if diff := cmp.Diff([]string{"category", "customer_information", "response_email"}, got.Required); diff != "" {
		t.Fatalf("required mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(schema.CategoryValues(), got.Properties["category"].Enum); diff != "" {
		t.Fatalf("category enum mismatch (-want +got):\n%s", diff)
	}
	dates := got.Properties["customer_information"].Properties["dates"]
	if dates.Type != genai.TypeArray || dates.Items == nil || dates.Items.Type != genai.TypeString {
		t.Fatalf("unexpected dates schema: %#v", dates)
	}
	reply := got.Properties["response_email"]
	if len(reply.Required) != 6 {
		t.Fatalf("expected 6 required reply fields, got %v", reply.Required)
	}
}

func TestContentConfig(t *testing.T) {
	g := &Generator{model: "gemini-test", temperature: 0}
	cfg := g.contentConfig(llm.Request{
		System: "classify",
		User:   "hello",
		Schema: schema.AgentOutputSchema("info@transformance.com"),
	})
	if cfg.ResponseMIMEType != "application/json" || cfg.ResponseSchema == nil {
		t.Fatalf("structured output not requested: %#v", cfg)
	}
	if cfg.SystemInstruction == nil || len(cfg.SystemInstruction.Parts) != 1 || cfg.SystemInstruction.Parts[0].Text != "classify" {
		t.Fatalf("unexpected system instruction: %#v", cfg.SystemInstruction)
	}
	if cfg.Temperature == nil || *cfg.Temperature != 0 {
		t.Fatalf("unexpected temperature: %v", cfg.Temperature)
	}
}
