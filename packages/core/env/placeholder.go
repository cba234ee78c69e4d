package env

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"regexp"
)

var variablePattern = regexp.MustCompile(`\{\{([^{}]+)\}\}`)

// replacePlaceholders calls fn for every {{expr}} in input with the full match
// and the inner expression, and splices in whatever fn returns
func replacePlaceholders(input string, fn func(match, expr string) string) string {
	return variablePattern.ReplaceAllStringFunc(input, func(match string) string {
		return fn(match, match[2:len(match)-2])
	})
}

// UnmarshalJSON parses a single JSON value, keeping numbers as json.Number
func UnmarshalJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("trailing data after JSON value")
	}
	return v, nil
}

// MarshalJSON encodes v compactly without escaping HTML characters
func MarshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
