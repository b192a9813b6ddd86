package schema

import (
	"strings"
)

// EmailRecord is one email: either an inbound customer message or a drafted reply.
type EmailRecord struct {
	ID         string `json:"id"`
	ReceivedAt string `json:"receivedAt"`
	Sender     string `json:"sender"`
	Receiver   string `json:"receiver"`
	Subject    string `json:"subject"`
	Body       string `json:"body"`
}

// NewEmailRecord returns a validated EmailRecord. Every field is required.
func NewEmailRecord(id, receivedAt, sender, receiver, subject, body string) (EmailRecord, error) {
	r := EmailRecord{
		ID:         id,
		ReceivedAt: receivedAt,
		Sender:     sender,
		Receiver:   receiver,
		Subject:    subject,
		Body:       body,
	}
	if err := r.validate(""); err != nil {
		return EmailRecord{}, err
	}
	return r, nil
}

// Validate checks that every field is non-empty.
func (r EmailRecord) Validate() error {
	return r.validate("")
}

func (r EmailRecord) validate(prefix string) error {
	fields := []struct {
		name  string
		value string
	}{
		{"id", r.ID},
		{"receivedAt", r.ReceivedAt},
		{"sender", r.Sender},
		{"receiver", r.Receiver},
		{"subject", r.Subject},
		{"body", r.Body},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return blank(joinPath(prefix, f.name))
		}
	}
	return nil
}

type emailWire struct {
	ID         *string `json:"id"`
	ReceivedAt *string `json:"receivedAt"`
	Sender     *string `json:"sender"`
	Receiver   *string `json:"receiver"`
	Subject    *string `json:"subject"`
	Body       *string `json:"body"`

	// The sample corpus spells the recipient key "reciever".
	LegacyReceiver *string `json:"reciever"`
}

func (w *emailWire) record(prefix string) (EmailRecord, error) {
	if w == nil {
		return EmailRecord{}, missing(prefix)
	}
	if w.Receiver == nil {
		w.Receiver = w.LegacyReceiver
	}
	fields := []struct {
		name  string
		value *string
	}{
		{"id", w.ID},
		{"receivedAt", w.ReceivedAt},
		{"sender", w.Sender},
		{"receiver", w.Receiver},
		{"subject", w.Subject},
		{"body", w.Body},
	}
	for _, f := range fields {
		if f.value == nil {
			return EmailRecord{}, missing(joinPath(prefix, f.name))
		}
	}
	r := EmailRecord{
		ID:         *w.ID,
		ReceivedAt: *w.ReceivedAt,
		Sender:     *w.Sender,
		Receiver:   *w.Receiver,
		Subject:    *w.Subject,
		Body:       *w.Body,
	}
	if err := r.validate(prefix); err != nil {
		return EmailRecord{}, err
	}
	return r, nil
}

// DecodeEmailRecord parses a JSON email and validates it.
func DecodeEmailRecord(data []byte) (EmailRecord, error) {
	var w emailWire
	if err := decodeJSON(data, &w); err != nil {
		return EmailRecord{}, err
	}
	return w.record("")
}
