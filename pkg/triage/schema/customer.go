package schema

import (
	"strings"
	"time"
)

// DateLayout is the only accepted format for CustomerInformation.Dates.
const DateLayout = "2006-01-02"

// CustomerInformation is the metadata extracted from one processed email.
type CustomerInformation struct {
	Name              string   `json:"name"`
	Dates             []string `json:"dates"`
	Amounts           []string `json:"amounts"`
	InvoiceReferences []string `json:"invoice_references"`
	DisputeDetails    string   `json:"dispute_details"`
}

// NewCustomerInformation returns a validated CustomerInformation that owns
// copies of the given slices. Nil slices become empty ones.
func NewCustomerInformation(name string, dates, amounts, invoiceRefs []string, disputeDetails string) (CustomerInformation, error) {
	ci := CustomerInformation{
		Name:              name,
		Dates:             cloneStrings(dates),
		Amounts:           cloneStrings(amounts),
		InvoiceReferences: cloneStrings(invoiceRefs),
		DisputeDetails:    disputeDetails,
	}
	if err := ci.validate(""); err != nil {
		return CustomerInformation{}, err
	}
	return ci, nil
}

// Validate checks the field rules without copying.
func (ci CustomerInformation) Validate() error {
	return ci.validate("")
}

func (ci CustomerInformation) validate(prefix string) error {
	if strings.TrimSpace(ci.Name) == "" {
		return blank(joinPath(prefix, "name"))
	}
	for i, d := range ci.Dates {
		if _, err := time.Parse(DateLayout, d); err != nil {
			return &ValidationError{
				Field:  joinPath(prefix, indexPath("dates", i)),
				Reason: "must be a YYYY-MM-DD date (got " + quote(d) + ")",
			}
		}
	}
	for i, a := range ci.Amounts {
		if strings.TrimSpace(a) == "" {
			return blank(joinPath(prefix, indexPath("amounts", i)))
		}
	}
	for i, ref := range ci.InvoiceReferences {
		if strings.TrimSpace(ref) == "" {
			return blank(joinPath(prefix, indexPath("invoice_references", i)))
		}
	}
	return nil
}

// clone returns a deep copy.
func (ci CustomerInformation) clone() CustomerInformation {
	ci.Dates = cloneStrings(ci.Dates)
	ci.Amounts = cloneStrings(ci.Amounts)
	ci.InvoiceReferences = cloneStrings(ci.InvoiceReferences)
	return ci
}

type customerWire struct {
	Name              *string   `json:"name"`
	Dates             *[]string `json:"dates"`
	Amounts           *[]string `json:"amounts"`
	InvoiceReferences *[]string `json:"invoice_references"`
	DisputeDetails    *string   `json:"dispute_details"`
}

func (w *customerWire) info(prefix string) (CustomerInformation, error) {
	if w == nil {
		return CustomerInformation{}, missing(prefix)
	}
	switch {
	case w.Name == nil:
		return CustomerInformation{}, missing(joinPath(prefix, "name"))
	case w.Dates == nil:
		return CustomerInformation{}, missing(joinPath(prefix, "dates"))
	case w.Amounts == nil:
		return CustomerInformation{}, missing(joinPath(prefix, "amounts"))
	case w.InvoiceReferences == nil:
		return CustomerInformation{}, missing(joinPath(prefix, "invoice_references"))
	case w.DisputeDetails == nil:
		return CustomerInformation{}, missing(joinPath(prefix, "dispute_details"))
	}
	ci := CustomerInformation{
		Name:              *w.Name,
		Dates:             cloneStrings(*w.Dates),
		Amounts:           cloneStrings(*w.Amounts),
		InvoiceReferences: cloneStrings(*w.InvoiceReferences),
		DisputeDetails:    *w.DisputeDetails,
	}
	if err := ci.validate(prefix); err != nil {
		return CustomerInformation{}, err
	}
	return ci, nil
}

func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
