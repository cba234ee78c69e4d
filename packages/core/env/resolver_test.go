package env

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/abdul-hamid-achik/hitcron/packages/core/model"
)

func resolverWith(vars map[string]string) *Resolver {
	list := make([]model.EnvironmentVariable, 0, len(vars))
	for name, value := range vars {
		list = append(list, model.EnvironmentVariable{Name: name, Value: value})
	}
	return NewResolverFromVariables(list)
}

func TestResolverResolve(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		variables map[string]string
		expected  string
	}{
		{
			name:     "no variables",
			input:    "hello world",
			expected: "hello world",
		},
		{
			name:      "simple variable",
			input:     "hello {{name}}",
			variables: map[string]string{"name": "world"},
			expected:  "hello world",
		},
		{
			name:      "multiple variables",
			input:     "{{greeting}} {{name}}!",
			variables: map[string]string{"greeting": "Hello", "name": "World"},
			expected:  "Hello World!",
		},
		{
			name:      "repeated variable",
			input:     "{{id}}-{{id}}",
			variables: map[string]string{"id": "7"},
			expected:  "7-7",
		},
		{
			name:      "surrounding whitespace in placeholder",
			input:     "{{ host }}/x",
			variables: map[string]string{"host": "api"},
			expected:  "api/x",
		},
		{
			name:     "unresolved stays as-is",
			input:    "hello {{unknown}}",
			expected: "hello {{unknown}}",
		},
		{
			name:      "value containing placeholder is not re-substituted",
			input:     "{{a}}",
			variables: map[string]string{"a": "{{b}}", "b": "nope"},
			expected:  "{{b}}",
		},
		{
			name:      "response placeholder is left for the extractor",
			input:     "{{baseUrl}}/users/{{response.body.id}}",
			variables: map[string]string{"baseUrl": "https://x"},
			expected:  "https://x/users/{{response.body.id}}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := resolverWith(tt.variables)

			got := r.Resolve(tt.input)
			if got != tt.expected {
				t.Errorf("Resolve(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSubstituteLeavesUnmatchedBytesUnchanged(t *testing.T) {
	vars := []model.EnvironmentVariable{{Name: "known", Value: "v"}}
	tests := []struct {
		input    string
		expected string
	}{
		{"{{missing}}", "{{missing}}"},
		{"a{{x}}b{{known}}c{{y.z}}", "a{{x}}bvc{{y.z}}"},
		{"{{ spaced }}", "{{ spaced }}"},
		{"{{}} {{{odd}}}", "{{}} {{{odd}}}"},
		{"{{known}}{{known }}", "vv"},
	}
	for _, tt := range tests {
		if got := Substitute(tt.input, vars); got != tt.expected {
			t.Errorf("Substitute(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestNewResolverFromVariablesFirstWins(t *testing.T) {
	r := NewResolverFromVariables([]model.EnvironmentVariable{
		{Name: "host", Value: "first"},
		{Name: "host", Value: "second"},
	})
	if got := r.Resolve("{{host}}"); got != "first" {
		t.Errorf("Resolve() = %q, want %q", got, "first")
	}
}

func TestResolverWarnsOnUnresolved(t *testing.T) {
	var warnings []string
	r := resolverWith(nil)
	r.SetWarnFunc(func(format string, args ...any) {
		warnings = append(warnings, fmt.Sprintf(format, args...))
	})

	r.Resolve("{{missing}} {{response.body.id}}")

	if len(warnings) != 1 {
		t.Fatalf("got %d warnings, want 1: %v", len(warnings), warnings)
	}
	if warnings[0] != "unresolved variable: missing" {
		t.Errorf("warning = %q", warnings[0])
	}
}

func TestResolveBody(t *testing.T) {
	r := resolverWith(map[string]string{"name": "alice", "age": "30"})

	t.Run("nil body", func(t *testing.T) {
		if got := r.ResolveBody(nil); got != nil {
			t.Errorf("ResolveBody(nil) = %v, want nil", got)
		}
	})

	t.Run("string body", func(t *testing.T) {
		got := r.ResolveBody(`{"name":"{{name}}"}`)
		if got != `{"name":"alice"}` {
			t.Errorf("ResolveBody() = %v", got)
		}
	})

	t.Run("structured body is re-parsed", func(t *testing.T) {
		got := r.ResolveBody(map[string]any{
			"name": "{{name}}",
			"tags": []any{"{{name}}", "x"},
		})
		m, ok := got.(map[string]any)
		if !ok {
			t.Fatalf("ResolveBody() returned %T, want map", got)
		}
		if m["name"] != "alice" {
			t.Errorf("name = %v, want alice", m["name"])
		}
		tags := m["tags"].([]any)
		if tags[0] != "alice" {
			t.Errorf("tags[0] = %v, want alice", tags[0])
		}
	})

	t.Run("structured body keeps large integers exact", func(t *testing.T) {
		body, err := UnmarshalJSON([]byte(`{"id":9007199254740993,"name":"{{name}}"}`))
		if err != nil {
			t.Fatal(err)
		}
		got, ok := r.ResolveBody(body).(map[string]any)
		if !ok {
			t.Fatalf("ResolveBody() returned %T, want map", got)
		}
		if got["id"] != json.Number("9007199254740993") {
			t.Errorf("id = %v, want 9007199254740993", got["id"])
		}
		if got["name"] != "alice" {
			t.Errorf("name = %v, want alice", got["name"])
		}
	})

	t.Run("structured body that breaks JSON falls back to text", func(t *testing.T) {
		r := resolverWith(map[string]string{"q": `a"b`})
		got := r.ResolveBody(map[string]any{"v": "{{q}}"})
		if got != `{"v":"a"b"}` {
			t.Errorf("ResolveBody() = %v", got)
		}
	})
}
