// Package model defines the data types shared by the hitcron execution engine,
// the scheduler and the persistence layer.
package model

import (
	"time"
)

// RunStatus is the aggregate outcome of a batch run
type RunStatus string

const (
	StatusSuccess RunStatus = "SUCCESS"
	StatusPartial RunStatus = "PARTIAL"
	StatusFailed  RunStatus = "FAILED"
)

// ApiDefinition describes one HTTP call inside a collection. URL, header values
// and body may contain {{variable}} and {{response.body.path}} placeholders.
type ApiDefinition struct {
	ID      string            `json:"id" yaml:"id"`
	Name    string            `json:"name" yaml:"name"`
	URL     string            `json:"url" yaml:"url"`
	Method  string            `json:"method" yaml:"method"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	// Body is nil, a string, or a structured value (map/slice) that is sent as JSON.
	Body  any `json:"body,omitempty" yaml:"body,omitempty"`
	Order int `json:"order" yaml:"order"`
}

// EnvironmentVariable is a flat key/value pair scoped to one environment
type EnvironmentVariable struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

type Environment struct {
	ID        string                `json:"id" yaml:"id"`
	Name      string                `json:"name" yaml:"name"`
	Variables []EnvironmentVariable `json:"variables,omitempty" yaml:"variables,omitempty"`
}

// AuthenticationCredential values are injected as the apiKey and token request headers
type AuthenticationCredential struct {
	ID     string `json:"id" yaml:"id"`
	APIKey string `json:"apiKey,omitempty" yaml:"apiKey,omitempty"`
	Token  string `json:"token,omitempty" yaml:"token,omitempty"`
}

// Collection is an ordered group of API definitions owned by an application
type Collection struct {
	ID            string           `json:"id" yaml:"id"`
	ApplicationID string           `json:"applicationId" yaml:"applicationId"`
	Name          string           `json:"name" yaml:"name"`
	APIs          []*ApiDefinition `json:"apis" yaml:"apis"`
}

// CallResult is the recorded outcome of a single call
type CallResult struct {
	ApiID           string            `json:"apiId"`
	StatusCode      int               `json:"statusCode"`
	DurationMs      int64             `json:"durationMs"`
	ResponseHeaders map[string]string `json:"responseHeaders,omitempty"`
	ResponseBody    any               `json:"responseBody"`
	Error           *string           `json:"error"`
}

// Failed reports whether the call counts against the run status
func (c *CallResult) Failed() bool {
	return c.StatusCode >= 400
}

// ErrorMessage returns the error text or an empty string
func (c *CallResult) ErrorMessage() string {
	if c.Error == nil {
		return ""
	}
	return *c.Error
}

// RunResult is written once per batch invocation
type RunResult struct {
	ID            string        `json:"id"`
	ApplicationID string        `json:"applicationId"`
	EnvironmentID string        `json:"environmentId"`
	SessionID     string        `json:"sessionId,omitempty"`
	Status        RunStatus     `json:"status"`
	DurationMs    int64         `json:"durationMs"`
	Calls         []*CallResult `json:"calls"`
	CreatedAt     time.Time     `json:"createdAt"`

	// LastResponse is the response body of the final call. It is not persisted;
	// callers pass it as the previous response of a follow-up batch.
	LastResponse any `json:"-"`
}

// ScheduledTest is a cron-triggered configuration that fires one batch per collection
type ScheduledTest struct {
	ID               string     `json:"id" yaml:"id"`
	CronExpression   string     `json:"cronExpression" yaml:"cron"`
	EnvironmentID    string     `json:"environmentId" yaml:"environmentId"`
	AuthenticationID string     `json:"authenticationId,omitempty" yaml:"authenticationId,omitempty"`
	CollectionIDs    []string   `json:"collections" yaml:"collections"`
	Emails           []string   `json:"emails,omitempty" yaml:"emails,omitempty"`
	IsActive         bool       `json:"isActive" yaml:"isActive"`
	LastRunAt        *time.Time `json:"lastRunAt,omitempty" yaml:"-"`
}

// StringPtr returns a pointer to s
func StringPtr(s string) *string {
	return &s
}
