// Package schema defines the accounts-receivable vocabulary and the structured
// records exchanged between the classifier, the router and downstream handlers.
package schema

import (
	"strings"
)

// Category is one of the fixed accounts-receivable intents an email can have.
type Category string

const (
	CategoryPaymentClaim     Category = "Payment Claim"
	CategoryDispute          Category = "Dispute"
	CategoryGeneralARRequest Category = "General AR Request"
)

// categories is the closed set in declaration order. Instruction text, the
// response schema enum and the validator all read from it.
var categories = []Category{
	CategoryPaymentClaim,
	CategoryDispute,
	CategoryGeneralARRequest,
}

// Categories returns the closed category set in declaration order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// CategoryValues returns the category names in declaration order.
func CategoryValues() []string {
	out := make([]string, 0, len(categories))
	for _, c := range categories {
		out = append(out, string(c))
	}
	return out
}

// CategoryList renders the categories as a comma-separated list, e.g.
// "Payment Claim, Dispute, General AR Request".
func CategoryList() string {
	return strings.TrimRight(strings.Join(CategoryValues(), ", "), " \t\r\n")
}

// Valid reports whether c belongs to the closed set.
func (c Category) Valid() bool {
	for _, known := range categories {
		if c == known {
			return true
		}
	}
	return false
}

func (c Category) String() string {
	return string(c)
}

// ParseCategory matches raw against the closed set exactly.
func ParseCategory(raw string) (Category, error) {
	c := Category(raw)
	if !c.Valid() {
		return "", &ValidationError{
			Field:  "category",
			Reason: "must be one of: " + CategoryList() + " (got " + quote(raw) + ")",
		}
	}
	return c, nil
}
