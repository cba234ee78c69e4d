package runner

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitcron/packages/core/model"
	"github.com/abdul-hamid-achik/hitcron/packages/http"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Source supplies the externally owned data a batch needs
type Source interface {
	EnvironmentVariables(ctx context.Context, environmentID string) ([]model.EnvironmentVariable, error)
	Authentication(ctx context.Context, id string) (*model.AuthenticationCredential, error)
}

// RunWriter persists a finished run together with its call rows
type RunWriter interface {
	CreateRun(ctx context.Context, run *model.RunResult) error
}

type Config struct {
	Timeout        time.Duration
	FollowRedirect bool
	MaxRedirects   int
	ValidateSSL    bool
	Proxy          string
	DefaultHeaders map[string]string
	Logger         logrus.FieldLogger
}

// DefaultRunnerConfig mirrors the http client defaults
func DefaultRunnerConfig() *Config {
	return &Config{
		Timeout:        http.DefaultTimeout,
		FollowRedirect: true,
		MaxRedirects:   http.DefaultMaxRedirects,
		ValidateSSL:    true,
	}
}

type Runner struct {
	executor *Executor
	source   Source
	runs     RunWriter
	config   *Config
	log      logrus.FieldLogger
}

func NewRunner(cfg *Config, source Source, runs RunWriter) *Runner {
	if cfg == nil {
		cfg = DefaultRunnerConfig()
	}

	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("component", "runner")

	clientOpts := []http.ClientOption{
		http.WithFollowRedirects(cfg.FollowRedirect),
		http.WithValidateSSL(cfg.ValidateSSL),
	}
	if cfg.Timeout > 0 {
		clientOpts = append(clientOpts, http.WithTimeout(cfg.Timeout))
	}
	if cfg.MaxRedirects > 0 {
		clientOpts = append(clientOpts, http.WithMaxRedirects(cfg.MaxRedirects))
	}
	if cfg.Proxy != "" {
		clientOpts = append(clientOpts, http.WithProxy(cfg.Proxy))
	}
	if len(cfg.DefaultHeaders) > 0 {
		clientOpts = append(clientOpts, http.WithDefaultHeaders(cfg.DefaultHeaders))
	}

	return &Runner{
		executor: NewExecutor(http.NewClient(clientOpts...), log),
		source:   source,
		runs:     runs,
		config:   cfg,
		log:      log,
	}
}

// Executor exposes the single-call executor sharing this runner's client
func (r *Runner) Executor() *Executor {
	return r.executor
}

type BatchParams struct {
	ApplicationID    string
	EnvironmentID    string
	AuthenticationID string
	APIs             []*model.ApiDefinition
	// PreviousResponse seeds the chain input of the first call
	PreviousResponse any
	SessionID        string
}

func (p *BatchParams) validate() error {
	if strings.TrimSpace(p.EnvironmentID) == "" {
		return &ValidationError{Field: "environmentId", Message: "environment id is required"}
	}
	if len(p.APIs) == 0 {
		return &ValidationError{Field: "apis", Message: "at least one api definition is required"}
	}
	for i, api := range p.APIs {
		if api == nil {
			return &ValidationError{Field: "apis", Message: fmt.Sprintf("api definition %d is empty", i)}
		}
	}
	return nil
}

// ExecuteCall resolves the environment and credential of a single call and
// executes it without persisting anything.
func (r *Runner) ExecuteCall(ctx context.Context, environmentID, authenticationID string, api *model.ApiDefinition, previousBody any) (*model.CallResult, error) {
	vars, auth, err := r.lookup(ctx, environmentID, authenticationID)
	if err != nil {
		return nil, err
	}

	result, _, err := r.executor.ExecuteCall(ctx, Call{
		API:          api,
		Variables:    vars,
		Auth:         auth,
		PreviousBody: previousBody,
	})
	return result, err
}

// RunBatch executes the APIs in order and persists exactly one RunResult.
// Once validation and lookups succeed the batch cannot be cancelled; each
// call is still bounded by the client timeout.
func (r *Runner) RunBatch(ctx context.Context, params BatchParams) (*model.RunResult, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	vars, auth, err := r.lookup(ctx, params.EnvironmentID, params.AuthenticationID)
	if err != nil {
		return nil, err
	}

	apis := make([]*model.ApiDefinition, len(params.APIs))
	copy(apis, params.APIs)
	sort.SliceStable(apis, func(i, j int) bool {
		return apis[i].Order < apis[j].Order
	})

	log := r.log.WithFields(logrus.Fields{
		"application_id": params.ApplicationID,
		"environment_id": params.EnvironmentID,
		"session_id":     params.SessionID,
	})

	runCtx := context.WithoutCancel(ctx)
	run := &model.RunResult{
		ID:            uuid.New().String(),
		ApplicationID: params.ApplicationID,
		EnvironmentID: params.EnvironmentID,
		SessionID:     params.SessionID,
		Calls:         make([]*model.CallResult, 0, len(apis)),
	}

	previous := params.PreviousResponse
	for _, api := range apis {
		result, body := r.executeSafely(runCtx, Call{
			API:          api,
			Variables:    vars,
			Auth:         auth,
			PreviousBody: previous,
		})
		run.Calls = append(run.Calls, result)
		run.DurationMs += result.DurationMs
		previous = body
	}

	run.Status = AggregateStatus(run.Calls)
	run.CreatedAt = time.Now().UTC()
	run.LastResponse = previous

	if r.runs != nil {
		if err := r.runs.CreateRun(runCtx, run); err != nil {
			return nil, fmt.Errorf("saving run: %w", err)
		}
	}

	log.WithFields(logrus.Fields{
		"run_id":      run.ID,
		"status":      run.Status,
		"calls":       len(run.Calls),
		"duration_ms": run.DurationMs,
	}).Info("batch completed")

	return run, nil
}

// executeSafely converts every failure of one call into an error-flagged
// result so the remaining calls still run. The chain input resets to nil.
func (r *Runner) executeSafely(ctx context.Context, call Call) (result *model.CallResult, body any) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.WithField("api_id", call.API.ID).Errorf("call panicked: %v", rec)
			result = &model.CallResult{
				ApiID:      call.API.ID,
				StatusCode: TransportErrorStatus,
				Error:      model.StringPtr(fmt.Sprintf("panic: %v", rec)),
			}
			body = nil
		}
	}()

	result, body, err := r.executor.ExecuteCall(ctx, call)
	if err != nil {
		return &model.CallResult{
			ApiID:      call.API.ID,
			StatusCode: TransportErrorStatus,
			Error:      model.StringPtr(err.Error()),
		}, nil
	}
	return result, body
}

func (r *Runner) lookup(ctx context.Context, environmentID, authenticationID string) ([]model.EnvironmentVariable, *model.AuthenticationCredential, error) {
	if r.source == nil {
		return nil, nil, nil
	}

	vars, err := r.source.EnvironmentVariables(ctx, environmentID)
	if err != nil {
		return nil, nil, &LookupError{Resource: "environment", ID: environmentID, Err: err}
	}

	if authenticationID == "" {
		return vars, nil, nil
	}
	auth, err := r.source.Authentication(ctx, authenticationID)
	if err != nil {
		return nil, nil, &LookupError{Resource: "authentication", ID: authenticationID, Err: err}
	}
	return vars, auth, nil
}
