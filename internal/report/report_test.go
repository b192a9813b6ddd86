package report_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shpitdev/ar-inbox-triage/internal/report"
	"github.com/shpitdev/ar-inbox-triage/pkg/triage/batch"
	"github.com/shpitdev/ar-inbox-triage/pkg/triage/schema"
)

func paymentOutput(t *testing.T) *schema.AgentOutput {
	t.Helper()
	reply, err := schema.NewEmailRecord("r-1", "2024-01-06T09:00:00Z", "info@transformance.com", "a@x.com", "Re: Invoice #123 overdue", "Thanks")
	if err != nil {
		t.Fatalf("NewEmailRecord: %v", err)
	}
	info, err := schema.NewCustomerInformation("a@x.com", []string{"2024-01-05"}, []string{"500"}, []string{"123"}, "")
	if err != nil {
		t.Fatalf("NewCustomerInformation: %v", err)
	}
	out, err := schema.NewAgentOutput(reply, schema.CategoryPaymentClaim, info)
	if err != nil {
		t.Fatalf("NewAgentOutput: %v", err)
	}
	return &out
}

func outcomes(t *testing.T) []batch.Outcome {
	return []batch.Outcome{
		{
			Input:  `{"id":"e-1","sender":"a@x.com","subject":"Invoice #123 overdue","body":"We already paid"}`,
			Output: paymentOutput(t),
		},
		{
			Input: `{"id":7,"sender":"b@y.com","subject":"Hi","body":"?"}`,
			Err:   errors.New("generation failed: Bearer sk-secret-token"),
		},
		{
			Input: "plain text email",
			Err:   errors.New("timeout"),
		},
	}
}

func TestRows(t *testing.T) {
	got := report.Rows(outcomes(t))
	want := []report.Row{
		{
			ID:                "e-1",
			Sender:            "a@x.com",
			Subject:           "Invoice #123 overdue",
			Category:          "Payment Claim",
			CustomerName:      "a@x.com",
			Dates:             `["2024-01-05"]`,
			Amounts:           `["500"]`,
			InvoiceReferences: `["123"]`,
			ReplySubject:      "Re: Invoice #123 overdue",
			Status:            report.StatusOK,
		},
		{ID: "7", Sender: "b@y.com", Subject: "Hi", Status: report.StatusError},
		{ID: "#2", Status: report.StatusError, Error: "timeout"},
	}
	if strings.Contains(got[1].Error, "sk-secret-token") || got[1].Error == "" {
		t.Fatalf("error must be redacted and non-empty: %q", got[1].Error)
	}
	got[1].Error = ""
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}
	if ok, failed := report.Summary(report.Rows(outcomes(t))); ok != 1 || failed != 2 {
		t.Fatalf("summary ok=%d failed=%d", ok, failed)
	}
}

func TestWriteCSV_ReadCSV(t *testing.T) {
	rows := report.Rows(outcomes(t))

	var buf bytes.Buffer
	if err := report.WriteCSV(&buf, rows); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	firstLine, _, _ := strings.Cut(buf.String(), "\n")
	if firstLine != strings.Join(report.Header(), ",") {
		t.Fatalf("header=%q", firstLine)
	}

	got, err := report.ReadCSV(&buf)
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if diff := cmp.Diff(rows, got); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestReadCSV_MissingColumn(t *testing.T) {
	if _, err := report.ReadCSV(strings.NewReader("id,sender\n1,a\n")); err == nil {
		t.Fatalf("expected error")
	}
}

func TestWriteJSONL(t *testing.T) {
	var buf bytes.Buffer
	if err := report.WriteJSONL(&buf, outcomes(t)); err != nil {
		t.Fatalf("WriteJSONL: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line for one success, got %d: %q", len(lines), buf.String())
	}
	out, err := schema.DecodeAgentOutput([]byte(lines[0]))
	if err != nil {
		t.Fatalf("line does not decode: %v", err)
	}
	if out.Category() != schema.CategoryPaymentClaim {
		t.Fatalf("category=%q", out.Category())
	}
}
