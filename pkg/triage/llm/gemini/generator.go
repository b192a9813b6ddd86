// Package gemini implements llm.Generator on top of the Gemini API using
// structured output (response MIME type application/json plus a response schema).
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/shpitdev/ar-inbox-triage/pkg/triage/llm"
	"github.com/shpitdev/ar-inbox-triage/pkg/triage/schema"
	"google.golang.org/genai"
)

type Config struct {
	APIKey string
	Model  string

	// BaseURL overrides the Gemini API base URL. Useful for proxies/testing.
	BaseURL string

	// Temperature is passed through as-is; classification runs at 0.
	Temperature float32
}

type Generator struct {
	client      *genai.Client
	model       string
	temperature float32
}

func New(ctx context.Context, cfg Config) (*Generator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("GEMINI_MODEL is required")
	}

	cc := &genai.ClientConfig{
		APIKey:  strings.TrimSpace(cfg.APIKey),
		Backend: genai.BackendGeminiAPI,
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		cc.HTTPOptions.BaseURL = strings.TrimSpace(cfg.BaseURL)
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, err
	}
	return &Generator{
		client:      client,
		model:       strings.TrimSpace(cfg.Model),
		temperature: cfg.Temperature,
	}, nil
}

func (g *Generator) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	base := llm.Response{Model: g.model}
	if strings.TrimSpace(req.User) == "" {
		return base, errors.New("empty user turn")
	}

	resp, err := g.client.Models.GenerateContent(
		ctx,
		g.model,
		genai.Text(req.User),
		g.contentConfig(req),
	)
	if err != nil {
		return base, classifyErr(err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		// Blocked or truncated candidates come back empty; another attempt may succeed.
		return base, &llm.LimitedTransientError{
			Err:          fmt.Errorf("gemini: empty response (finish reason %s)", finishReason(resp)),
			ExtraRetries: 1,
		}
	}
	base.JSON = []byte(text)
	return base, nil
}

func (g *Generator) contentConfig(req llm.Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		CandidateCount: 1,
		Temperature:    genai.Ptr(g.temperature),
	}
	if strings.TrimSpace(req.System) != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Schema != nil {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = toGenaiSchema(req.Schema)
	}
	return cfg
}

// toGenaiSchema converts the provider-neutral schema into Gemini's schema type.
func toGenaiSchema(n *schema.Node) *genai.Schema {
	if n == nil {
		return nil
	}
	out := &genai.Schema{
		Type:        genaiType(n.Type),
		Description: n.Description,
		Items:       toGenaiSchema(n.Items),
	}
	if len(n.Enum) > 0 {
		out.Enum = append([]string(nil), n.Enum...)
	}
	if len(n.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(n.Properties))
		for name, prop := range n.Properties {
			out.Properties[name] = toGenaiSchema(prop)
		}
	}
	if len(n.Order) > 0 {
		out.PropertyOrdering = append([]string(nil), n.Order...)
	}
	if len(n.Required) > 0 {
		out.Required = append([]string(nil), n.Required...)
	}
	return out
}

func genaiType(t string) genai.Type {
	switch t {
	case schema.TypeObject:
		return genai.TypeObject
	case schema.TypeArray:
		return genai.TypeArray
	default:
		return genai.TypeString
	}
}

func classifyErr(err error) error {
	// Wrap transient failures so the resilient wrapper will retry with backoff.
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == 429 || apiErr.Code/100 == 5 {
			return &llm.TransientError{Err: err}
		}
		return err
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &llm.TransientError{Err: err}
	}
	return err
}

func finishReason(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return "none"
	}
	if r := string(resp.Candidates[0].FinishReason); r != "" {
		return r
	}
	return "unspecified"
}
