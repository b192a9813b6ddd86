// Package report turns batch outcomes into the run's CSV and JSONL artefacts.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/shpitdev/ar-inbox-triage/pkg/pipeline/redact"
	"github.com/shpitdev/ar-inbox-triage/pkg/triage/batch"
)

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Row is the stable report schema. List fields hold JSON arrays.
type Row struct {
	ID                string
	Sender            string
	Subject           string
	Category          string
	CustomerName      string
	Dates             string
	Amounts           string
	InvoiceReferences string
	DisputeDetails    string
	ReplySubject      string
	Status            string
	Error             string
}

// Header returns the stable CSV header for Row.
func Header() []string {
	return []string{
		"id",
		"sender",
		"subject",
		"category",
		"customer_name",
		"dates",
		"amounts",
		"invoice_references",
		"dispute_details",
		"reply_subject",
		"status",
		"error",
	}
}

func (r Row) record() []string {
	return []string{
		r.ID,
		r.Sender,
		r.Subject,
		r.Category,
		r.CustomerName,
		r.Dates,
		r.Amounts,
		r.InvoiceReferences,
		r.DisputeDetails,
		r.ReplySubject,
		r.Status,
		r.Error,
	}
}

type inbound struct {
	ID      json.RawMessage `json:"id"`
	Sender  string          `json:"sender"`
	Subject string          `json:"subject"`
}

// Rows builds one row per outcome, in order. Failed outcomes get
// status=error and a redacted error message.
func Rows(outcomes []batch.Outcome) []Row {
	rows := make([]Row, 0, len(outcomes))
	for i, o := range outcomes {
		row := inboundRow(o.Input, i)
		if o.Err != nil || o.Output == nil {
			row.Status = StatusError
			if o.Err != nil {
				row.Error = redact.Secrets(o.Err.Error())
			}
			rows = append(rows, row)
			continue
		}
		ci := o.Output.CustomerInformation()
		row.Category = string(o.Output.Category())
		row.CustomerName = ci.Name
		row.Dates = jsonArrayOrEmpty(ci.Dates)
		row.Amounts = jsonArrayOrEmpty(ci.Amounts)
		row.InvoiceReferences = jsonArrayOrEmpty(ci.InvoiceReferences)
		row.DisputeDetails = ci.DisputeDetails
		row.ReplySubject = o.Output.ResponseEmail().Subject
		row.Status = StatusOK
		rows = append(rows, row)
	}
	return rows
}

// inboundRow fills the identifying columns from a JSON email. Plain text
// emails are identified by their position.
func inboundRow(text string, index int) Row {
	row := Row{ID: fmt.Sprintf("#%d", index)}
	var in inbound
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &in); err != nil {
		return row
	}
	if id := idString(in.ID); id != "" {
		row.ID = id
	}
	row.Sender = in.Sender
	row.Subject = in.Subject
	return row
}

func idString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return string(raw)
}

// WriteCSV writes rows with the stable Header() ordering.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header()); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(r.record()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV reads rows written by WriteCSV. Extra columns are ignored; every
// Header() column must exist.
func ReadCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, err
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	for _, name := range Header() {
		if _, ok := index[name]; !ok {
			return nil, fmt.Errorf("missing required column %q", name)
		}
	}

	var rows []Row
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		get := func(col string) string {
			i := index[col]
			if i >= len(rec) {
				return ""
			}
			return rec[i]
		}
		rows = append(rows, Row{
			ID:                get("id"),
			Sender:            get("sender"),
			Subject:           get("subject"),
			Category:          get("category"),
			CustomerName:      get("customer_name"),
			Dates:             get("dates"),
			Amounts:           get("amounts"),
			InvoiceReferences: get("invoice_references"),
			DisputeDetails:    get("dispute_details"),
			ReplySubject:      get("reply_subject"),
			Status:            get("status"),
			Error:             get("error"),
		})
	}
}

// WriteJSONL writes one AgentOutput per line for every successful outcome,
// in input order.
func WriteJSONL(w io.Writer, outcomes []batch.Outcome) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, o := range outcomes {
		if o.Err != nil || o.Output == nil {
			continue
		}
		if err := enc.Encode(o.Output); err != nil {
			return err
		}
	}
	return nil
}

// Summary counts outcomes by status.
func Summary(rows []Row) (ok, failed int) {
	for _, r := range rows {
		if r.Status == StatusOK {
			ok++
		} else {
			failed++
		}
	}
	return ok, failed
}

func jsonArrayOrEmpty(vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	b, err := json.Marshal(vals)
	if err != nil {
		return ""
	}
	return string(b)
}
