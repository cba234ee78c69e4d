package capture

import (
	"encoding/json"
	"testing"

	"github.com/abdul-hamid-achik/hitcron/packages/core/env"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, s string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

func TestSubstituteFromResponse_LargeIntegers(t *testing.T) {
	body, err := env.UnmarshalJSON([]byte(`{"id":9007199254740993,"ids":[18446744073709551615]}`))
	require.NoError(t, err)

	assert.Equal(t, "/users/9007199254740993", SubstituteFromResponse("/users/{{response.body.id}}", body))
	assert.Equal(t, "[18446744073709551615]", SubstituteFromResponse("{{response.body.ids}}", body))
}

func TestSubstituteFromResponse(t *testing.T) {
	body := parse(t, `{
		"userId": "42",
		"count": 3,
		"ratio": 0.5,
		"active": true,
		"missing": null,
		"user": {"name": "alice", "roles": ["admin", "dev"]},
		"items": [{"id": 10}, {"id": 11}]
	}`)

	tests := []struct {
		name     string
		template string
		expected string
	}{
		{"string value", "/users/{{response.body.userId}}", "/users/42"},
		{"integer value", "n={{response.body.count}}", "n=3"},
		{"float value", "{{response.body.ratio}}", "0.5"},
		{"bool value", "{{response.body.active}}", "true"},
		{"null value", "{{response.body.missing}}", "null"},
		{"nested key", "{{response.body.user.name}}", "alice"},
		{"array index", "{{response.body.items.1.id}}", "11"},
		{"nested array index", "{{response.body.user.roles.0}}", "admin"},
		{"object is serialized", "{{response.body.items.0}}", `{"id":10}`},
		{"array is serialized", "{{response.body.user.roles}}", `["admin","dev"]`},
		{"absent path stays literal", "{{response.body.nope.deeper}}", "{{response.body.nope.deeper}}"},
		{"index out of range stays literal", "{{response.body.items.5.id}}", "{{response.body.items.5.id}}"},
		{
			"missing segment does not abort the rest",
			"{{response.body.nope}}/{{response.body.userId}}",
			"{{response.body.nope}}/42",
		},
		{"plain variables are ignored", "{{baseUrl}}/{{response.body.count}}", "{{baseUrl}}/3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SubstituteFromResponse(tt.template, body))
		})
	}
}

func TestSubstituteFromResponse_MatchesManualWalk(t *testing.T) {
	body := parse(t, `{"a": {"b": [{"c": "deep"}]}}`)

	manual := body.(map[string]any)["a"].(map[string]any)["b"].([]any)[0].(map[string]any)["c"]
	assert.Equal(t, manual, SubstituteFromResponse("{{response.body.a.b.0.c}}", body))
}

func TestSubstituteFromResponse_NonTraversableBodies(t *testing.T) {
	template := "x {{response.body.id}}"

	assert.Equal(t, template, SubstituteFromResponse(template, nil))
	assert.Equal(t, template, SubstituteFromResponse(template, "plain text"))
	assert.Equal(t, template, SubstituteFromResponse(template, float64(42)))
}

func TestSubstituteFromResponse_ArrayRoot(t *testing.T) {
	body := parse(t, `[{"id": "first"}, {"id": "second"}]`)
	assert.Equal(t, "second", SubstituteFromResponse("{{response.body.1.id}}", body))
}

func TestSubstituteFromResponse_SpecialCharactersInKeys(t *testing.T) {
	body := parse(t, `{"a*b": "star", "q?": "question", "@meta": "at"}`)

	assert.Equal(t, "star", SubstituteFromResponse("{{response.body.a*b}}", body))
	assert.Equal(t, "question", SubstituteFromResponse("{{response.body.q?}}", body))
	assert.Equal(t, "at", SubstituteFromResponse("{{response.body.@meta}}", body))
}

func TestExtractor_Extract(t *testing.T) {
	e := NewExtractor(parse(t, `{"token": "abc"}`))

	v, ok := e.Extract("token")
	assert.True(t, ok)
	assert.Equal(t, "abc", v)

	_, ok = e.Extract("other")
	assert.False(t, ok)
}
