// Package llmtest provides a deterministic llm.Generator for tests and dry runs.
package llmtest

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/shpitdev/ar-inbox-triage/pkg/triage/llm"
	"github.com/shpitdev/ar-inbox-triage/pkg/triage/schema"
)

var (
	invoiceRe = regexp.MustCompile(`(?i)\binvoice\s*(?:no\.?|number)?\s*#?\s*([A-Za-z0-9-]*\d[A-Za-z0-9-]*)`)
	dateRe    = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
	amountRe  = regexp.MustCompile(`(?:\$|USD\s?|EUR\s?|€)\s?(\d[\d,]*(?:\.\d+)?)`)

	disputeCues = []string{"contest", "dispute", "disagree", "incorrect", "wrong", "overcharged"}
	paymentCues = []string{"already paid", "we paid", "have paid", "payment was sent", "remitted", "transferred"}
)

// Scripted answers with keyword rules instead of a model. The zero value is
// ready to use.
type Scripted struct {
	// CompanyAddress is used as the reply sender. Defaults to info@transformance.com.
	CompanyAddress string
	// Delay, if set, is slept (honouring ctx) before answering.
	Delay func(user string) time.Duration
	// Fail, if set and non-nil for the input, is returned instead of an answer.
	Fail func(user string) error

	mu    sync.Mutex
	calls []llm.Request
}

func (s *Scripted) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	s.mu.Unlock()

	if s.Delay != nil {
		if d := s.Delay(req.User); d > 0 {
			t := time.NewTimer(d)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
				return llm.Response{}, ctx.Err()
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return llm.Response{}, err
	}
	if s.Fail != nil {
		if err := s.Fail(req.User); err != nil {
			return llm.Response{}, err
		}
	}

	b, err := json.Marshal(s.answer(req.User))
	if err != nil {
		return llm.Response{}, err
	}
	return llm.Response{JSON: b, Model: "scripted"}, nil
}

// Requests returns a copy of every request seen so far.
func (s *Scripted) Requests() []llm.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]llm.Request(nil), s.calls...)
}

type inbound struct {
	ID      string `json:"id"`
	Sender  string `json:"sender"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (s *Scripted) answer(user string) map[string]any {
	var in inbound
	if err := json.Unmarshal([]byte(user), &in); err != nil {
		in = inbound{Body: user}
	}
	if in.Sender == "" {
		in.Sender = "customer@example.com"
	}
	if in.ID == "" {
		in.ID = "inline"
	}
	company := s.CompanyAddress
	if company == "" {
		company = "info@transformance.com"
	}

	text := in.Subject + "\n" + in.Body
	lower := strings.ToLower(text)
	category := schema.CategoryGeneralARRequest
	switch {
	case containsAny(lower, disputeCues):
		category = schema.CategoryDispute
	case containsAny(lower, paymentCues):
		category = schema.CategoryPaymentClaim
	}

	disputeDetails := ""
	reply := "Thank you for your message. Our AR support team will follow up shortly."
	switch category {
	case schema.CategoryDispute:
		disputeDetails = strings.TrimSpace(in.Body)
		reply = "We have received your dispute and passed it to our disputes team."
	case schema.CategoryPaymentClaim:
		reply = "Thank you for letting us know about your payment. We will match it against your open invoices."
	}

	return map[string]any{
		"response_email": map[string]any{
			"id":         "reply-" + in.ID,
			"receivedAt": "2024-01-01T00:00:00Z",
			"sender":     company,
			"receiver":   in.Sender,
			"subject":    "Re: " + strings.TrimSpace(in.Subject),
			"body":       reply,
		},
		"category": string(category),
		"customer_information": map[string]any{
			"name":               in.Sender,
			"dates":              unique(dateRe.FindAllString(text, -1)),
			"amounts":            unique(submatches(amountRe, text, func(s string) string { return strings.ReplaceAll(s, ",", "") })),
			"invoice_references": unique(submatches(invoiceRe, text, nil)),
			"dispute_details":    disputeDetails,
		},
	}
}

func containsAny(s string, cues []string) bool {
	for _, c := range cues {
		if strings.Contains(s, c) {
			return true
		}
	}
	return false
}

func submatches(re *regexp.Regexp, s string, clean func(string) string) []string {
	var out []string
	for _, m := range re.FindAllStringSubmatch(s, -1) {
		v := m[1]
		if clean != nil {
			v = clean(v)
		}
		out = append(out, v)
	}
	return out
}

func unique(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
