// Package local reads inbound email corpora from local files. Every email is
// returned as compact JSON text, the form the classifier consumes.
package local

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/shpitdev/ar-inbox-triage/pkg/triage/schema"
)

// CSVHeader is the column set ReadEmailsCSV understands. Only body is
// required; missing columns serialise as empty strings.
func CSVHeader() []string {
	return []string{"id", "receivedAt", "sender", "receiver", "subject", "body"}
}

// ReadEmailsCSV reads one email per row. Header matching is case-insensitive
// and accepts the legacy "reciever" spelling.
func ReadEmailsCSV(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, col := range header {
		name := strings.ToLower(strings.TrimSpace(col))
		if name == "reciever" {
			name = "receiver"
		}
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}
	if _, ok := index["body"]; !ok {
		return nil, fmt.Errorf("missing required column %q", "body")
	}

	var emails []string
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			return emails, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		get := func(col string) string {
			i, ok := index[strings.ToLower(col)]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}
		if get("body") == "" && get("subject") == "" {
			return nil, fmt.Errorf("row %d: email has neither subject nor body", line)
		}
		b, err := json.Marshal(schema.EmailRecord{
			ID:         get("id"),
			ReceivedAt: get("receivedAt"),
			Sender:     get("sender"),
			Receiver:   get("receiver"),
			Subject:    get("subject"),
			Body:       get("body"),
		})
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		emails = append(emails, string(b))
	}
}
