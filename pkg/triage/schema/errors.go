package schema

import (
	"errors"
	"strconv"
)

// ErrSchemaValidation is matched by every *ValidationError.
var ErrSchemaValidation = errors.New("schema validation failed")

// ValidationError names the offending field using a dotted path such as
// "customer_information.name".
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ErrSchemaValidation.Error()
	}
	if e.Field == "" {
		return "schema validation: " + e.Reason
	}
	return "schema validation: " + e.Field + ": " + e.Reason
}

func (e *ValidationError) Unwrap() error {
	return ErrSchemaValidation
}

func missing(field string) error {
	return &ValidationError{Field: field, Reason: "is required"}
}

func blank(field string) error {
	return &ValidationError{Field: field, Reason: "must not be empty"}
}

func joinPath(prefix, field string) string {
	if prefix == "" {
		return field
	}
	return prefix + "." + field
}

func indexPath(field string, i int) string {
	return field + "[" + strconv.Itoa(i) + "]"
}

func quote(s string) string {
	return strconv.Quote(s)
}
