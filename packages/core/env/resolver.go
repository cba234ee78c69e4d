package env

import (
	"strings"
	"sync"

	"github.com/abdul-hamid-achik/hitcron/packages/core/model"
)

// ResponsePrefix marks placeholders that are resolved against the previous response
const ResponsePrefix = "response.body."

// WarnFunc is a function type for handling warnings
type WarnFunc func(format string, args ...any)

// Resolver substitutes {{name}} placeholders from a fixed variable set.
// It is safe for concurrent use.
type Resolver struct {
	mu        sync.RWMutex
	variables map[string]string
	warnFunc  WarnFunc
}

// NewResolverFromVariables builds a resolver from an environment's variable list.
// When a name appears more than once the first occurrence wins.
func NewResolverFromVariables(vars []model.EnvironmentVariable) *Resolver {
	r := &Resolver{variables: make(map[string]string, len(vars))}
	for _, v := range vars {
		if _, exists := r.variables[v.Name]; !exists {
			r.variables[v.Name] = v.Value
		}
	}
	return r
}

// SetWarnFunc sets a function to be called when warnings occur (e.g., unresolved variables)
func (r *Resolver) SetWarnFunc(fn WarnFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnFunc = fn
}

func (r *Resolver) warn(format string, args ...any) {
	r.mu.RLock()
	fn := r.warnFunc
	r.mu.RUnlock()
	if fn != nil {
		fn(format, args...)
	}
}

// Resolve replaces every {{name}} with the matching variable value. The scan is
// single pass, so a value that itself contains {{...}} is never re-substituted.
func (r *Resolver) Resolve(input string) string {
	return replacePlaceholders(input, func(match, expr string) string {
		name := strings.TrimSpace(expr)

		r.mu.RLock()
		val, ok := r.variables[name]
		r.mu.RUnlock()
		if ok {
			return val
		}

		if !strings.HasPrefix(name, ResponsePrefix) {
			r.warn("unresolved variable: %s", name)
		}
		return match
	})
}

// ResolveBody substitutes a body template. Strings are resolved directly.
// Structured values are serialized, resolved and parsed again; if the
// resolved text is no longer valid JSON it is returned as a string.
func (r *Resolver) ResolveBody(body any) any {
	return TransformBody(body, r.Resolve)
}

// TransformBody applies fn to the textual form of body and restores its shape
func TransformBody(body any, fn func(string) string) any {
	switch b := body.(type) {
	case nil:
		return nil
	case string:
		return fn(b)
	default:
		raw, err := MarshalJSON(b)
		if err != nil {
			return body
		}
		resolved := fn(string(raw))
		parsed, err := UnmarshalJSON([]byte(resolved))
		if err != nil {
			return resolved
		}
		return parsed
	}
}

// Substitute resolves template against vars without a warning hook
func Substitute(template string, vars []model.EnvironmentVariable) string {
	return NewResolverFromVariables(vars).Resolve(template)
}
