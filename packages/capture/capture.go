package capture

import (
	"regexp"
	"strings"

	"github.com/abdul-hamid-achik/hitcron/packages/core/env"
	"github.com/tidwall/gjson"
)

var responsePattern = regexp.MustCompile(`\{\{\s*response\.body\.([^{}]+?)\s*\}\}`)

// Extractor walks a parsed response body
type Extractor struct {
	bodyJSON gjson.Result
}

// NewExtractor prepares body for path lookups. Only objects and arrays can be
// walked; any other body yields an extractor that never resolves.
func NewExtractor(body any) *Extractor {
	e := &Extractor{}
	switch body.(type) {
	case map[string]any, []any:
		raw, err := env.MarshalJSON(body)
		if err == nil {
			e.bodyJSON = gjson.ParseBytes(raw)
		}
	}
	return e
}

// Extract returns the textual value at the dot path, if present
func (e *Extractor) Extract(path string) (string, bool) {
	if !e.bodyJSON.Exists() {
		return "", false
	}

	result := e.bodyJSON.Get(toGJSONPath(path))
	if !result.Exists() {
		return "", false
	}

	switch result.Type {
	case gjson.String:
		return result.Str, true
	case gjson.Null:
		return "null", true
	case gjson.JSON:
		return result.Raw, true
	default:
		return result.String(), true
	}
}

// Substitute replaces every resolvable response placeholder in template
func (e *Extractor) Substitute(template string) string {
	if !e.bodyJSON.Exists() {
		return template
	}
	return responsePattern.ReplaceAllStringFunc(template, func(match string) string {
		sub := responsePattern.FindStringSubmatch(match)
		if value, ok := e.Extract(sub[1]); ok {
			return value
		}
		return match
	})
}

// SubstituteFromResponse resolves {{response.body.path}} placeholders in
// template against previousBody
func SubstituteFromResponse(template string, previousBody any) string {
	return NewExtractor(previousBody).Substitute(template)
}

// toGJSONPath escapes gjson syntax characters inside each segment so that the
// path is interpreted as plain keys and indices
func toGJSONPath(path string) string {
	segments := strings.Split(path, ".")
	for i, seg := range segments {
		var b strings.Builder
		for _, r := range seg {
			switch r {
			case '\\', '*', '?', '|', '#', '@', '!', '=', '<', '>', '%', '(', ')', '[', ']', '{', '}', ',', ':', '"':
				b.WriteRune('\\')
			}
			b.WriteRune(r)
		}
		segments[i] = b.String()
	}
	return strings.Join(segments, ".")
}
