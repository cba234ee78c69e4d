package runner

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitcron/packages/capture"
	"github.com/abdul-hamid-achik/hitcron/packages/core/env"
	"github.com/abdul-hamid-achik/hitcron/packages/core/model"
	hhttp "github.com/abdul-hamid-achik/hitcron/packages/http"
	"github.com/sirupsen/logrus"
)

// TransportErrorStatus is recorded when no HTTP response was received
const TransportErrorStatus = http.StatusInternalServerError

// Header names used to inject authentication credentials
const (
	APIKeyHeader = "apiKey"
	TokenHeader  = "token"
)

// Call holds the inputs of a single call execution
type Call struct {
	API       *model.ApiDefinition
	Variables []model.EnvironmentVariable
	Auth      *model.AuthenticationCredential
	// PreviousBody is the parsed response body of the preceding call, or nil
	PreviousBody any
}

// Executor issues single calls. It has no persistence side effects.
type Executor struct {
	client *hhttp.Client
	log    logrus.FieldLogger
}

func NewExecutor(client *hhttp.Client, log logrus.FieldLogger) *Executor {
	if client == nil {
		client = hhttp.NewClient()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Executor{
		client: client,
		log:    log,
	}
}

// BuildRequest resolves the call's templates into a request. Environment
// variables are substituted first and response placeholders second, so
// response data can never introduce a {{var}} token that gets substituted.
func (e *Executor) BuildRequest(call Call) (*hhttp.Request, error) {
	api := call.API
	resolver := env.NewResolverFromVariables(call.Variables)
	resolver.SetWarnFunc(func(format string, args ...any) {
		e.log.WithField("api_id", api.ID).Debugf(format, args...)
	})

	resolve := func(s string) string {
		return capture.SubstituteFromResponse(resolver.Resolve(s), call.PreviousBody)
	}

	url := resolve(api.URL)
	if err := hhttp.ValidateURL(url); err != nil {
		return nil, &ValidationError{Field: "url", Message: fmt.Sprintf("%s (%s)", err.Error(), url)}
	}

	method := strings.ToUpper(strings.TrimSpace(api.Method))
	if method == "" {
		method = http.MethodGet
	}
	req := hhttp.NewRequest(method, url)

	for k, v := range api.Headers {
		req.SetHeader(k, resolve(v))
	}

	if call.Auth != nil {
		if call.Auth.APIKey != "" {
			req.SetHeader(APIKeyHeader, call.Auth.APIKey)
		}
		if call.Auth.Token != "" {
			req.SetHeader(TokenHeader, call.Auth.Token)
		}
	}

	if api.Body != nil && req.AllowsBody() {
		switch body := env.TransformBody(api.Body, resolve).(type) {
		case string:
			req.SetBody([]byte(body))
		default:
			raw, err := env.MarshalJSON(body)
			if err != nil {
				return nil, &ValidationError{Field: "body", Message: err.Error()}
			}
			req.SetBody(raw)
			if !req.HasHeader("Content-Type") {
				req.SetHeader("Content-Type", "application/json")
			}
		}
	}

	// Servers may close the connection right after answering a DELETE
	req.DiscardBody = method == http.MethodDelete

	return req, nil
}

// ExecuteCall issues one call and classifies the outcome. The returned body
// is what the next call in a batch sees as its previous response; it is nil
// after a transport failure and for DELETE calls. A non-nil error means the
// call was rejected before dispatch.
func (e *Executor) ExecuteCall(ctx context.Context, call Call) (*model.CallResult, any, error) {
	if call.API == nil {
		return nil, nil, &ValidationError{Field: "api", Message: "api definition is required"}
	}

	req, err := e.BuildRequest(call)
	if err != nil {
		return nil, nil, err
	}

	log := e.log.WithFields(logrus.Fields{
		"api_id": call.API.ID,
		"method": req.Method,
		"url":    req.URL,
	})

	start := time.Now()
	resp, err := e.client.Do(ctx, req)
	if err != nil {
		log.WithError(err).Debug("call failed before a response was received")
		return &model.CallResult{
			ApiID:      call.API.ID,
			StatusCode: TransportErrorStatus,
			DurationMs: time.Since(start).Milliseconds(),
			Error:      model.StringPtr(err.Error()),
		}, nil, nil
	}

	var body any
	if !req.DiscardBody {
		body = resp.ParsedBody()
	}

	result := &model.CallResult{
		ApiID:           call.API.ID,
		StatusCode:      resp.StatusCode,
		DurationMs:      resp.DurationMs(),
		ResponseHeaders: resp.Headers,
		ResponseBody:    body,
	}
	if resp.StatusCode >= 400 {
		result.Error = model.StringPtr(resp.StatusText())
	}

	log.WithFields(logrus.Fields{
		"status":      resp.StatusCode,
		"duration_ms": result.DurationMs,
	}).Debug("call completed")

	return result, body, nil
}
