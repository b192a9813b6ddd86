package local

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

type corpus struct {
	Emails []json.RawMessage `json:"emails"`
}

// ReadEmailsJSON reads a {"emails": [...]} document. Each entry must be a JSON
// object and is returned compacted with its original key order.
func ReadEmailsJSON(r io.Reader) ([]string, error) {
	var doc corpus
	dec := json.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode corpus: %w", err)
	}
	if doc.Emails == nil {
		return nil, fmt.Errorf("missing required key %q", "emails")
	}

	out := make([]string, 0, len(doc.Emails))
	for i, raw := range doc.Emails {
		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) == 0 || trimmed[0] != '{' {
			return nil, fmt.Errorf("emails[%d]: want a JSON object", i)
		}
		var buf bytes.Buffer
		if err := json.Compact(&buf, trimmed); err != nil {
			return nil, fmt.Errorf("emails[%d]: %w", i, err)
		}
		out = append(out, buf.String())
	}
	return out, nil
}

// ReadEmailsFile picks the reader by extension: .csv for CSV, anything else
// is treated as a JSON corpus.
func ReadEmailsFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer func() { _ = f.Close() }()

	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return ReadEmailsCSV(f)
	}
	return ReadEmailsJSON(f)
}
