package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

// decodeJSON unmarshals a single JSON object and maps decoder failures onto
// ValidationError so callers see the offending field path.
func decodeJSON(data []byte, v any) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return &ValidationError{Reason: "empty document"}
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(v); err != nil {
		return jsonErr(err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return &ValidationError{Reason: "unexpected data after top-level object"}
	}
	return nil
}

func jsonErr(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if field == "" {
			field = "$"
		}
		return &ValidationError{
			Field:  field,
			Reason: "expected " + typeErr.Type.String() + ", got " + typeErr.Value,
		}
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return &ValidationError{Reason: "malformed json: " + syntaxErr.Error()}
	}
	return &ValidationError{Reason: err.Error()}
}
