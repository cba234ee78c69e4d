package runner

import (
	"fmt"
)

// ValidationError rejects a batch before any call is executed
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// LookupError reports a failed environment or credential lookup. It aborts
// the whole batch and nothing is persisted.
type LookupError struct {
	Resource string
	ID       string
	Err      error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("loading %s %q: %v", e.Resource, e.ID, e.Err)
}

func (e *LookupError) Unwrap() error {
	return e.Err
}
