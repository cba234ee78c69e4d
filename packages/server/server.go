package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/abdul-hamid-achik/hitcron/packages/core/model"
	"github.com/abdul-hamid-achik/hitcron/packages/core/runner"
	"github.com/abdul-hamid-achik/hitcron/packages/metrics"
	"github.com/abdul-hamid-achik/hitcron/packages/scheduler"
	"github.com/abdul-hamid-achik/hitcron/packages/store"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/sirupsen/logrus"
)

type Runner interface {
	RunBatch(ctx context.Context, params runner.BatchParams) (*model.RunResult, error)
	ExecuteCall(ctx context.Context, environmentID, authenticationID string, api *model.ApiDefinition, previousBody any) (*model.CallResult, error)
}

type Store interface {
	Ping(ctx context.Context) error
	Collection(ctx context.Context, id string) (*model.Collection, error)
	GetRun(ctx context.Context, id string) (*model.RunResult, error)
	ListRuns(ctx context.Context, sessionID string) ([]*model.RunResult, error)
	ScheduledTest(ctx context.Context, id string) (*model.ScheduledTest, error)
	ScheduledTests(ctx context.Context) ([]*model.ScheduledTest, error)
}

type Scheduler interface {
	Schedule(test *model.ScheduledTest) error
	Stop(id string) bool
	Trigger(test *model.ScheduledTest) error
	InitializeAllTasks(ctx context.Context) (int, error)
	Entries() []scheduler.Entry
}

type Server struct {
	runner    Runner
	store     Store
	scheduler Scheduler
	metrics   *metrics.Collector
	log       logrus.FieldLogger
	engine    *gin.Engine
}

type Option func(*Server)

// WithMetrics serves c on GET /metrics and GET /api/v1/metrics
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Server) {
		s.metrics = c
	}
}

func New(r Runner, st Store, sched Scheduler, log logrus.FieldLogger, opts ...Option) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	gin.SetMode(gin.ReleaseMode)
	binding.EnableDecoderUseNumber = true

	s := &Server{
		runner:    r,
		store:     st,
		scheduler: sched,
		log:       log.WithField("component", "server"),
	}
	for _, opt := range opts {
		opt(s)
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), s.requestLogger())

	engine.GET("/healthz", s.healthz)
	if s.metrics != nil {
		engine.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	api := engine.Group("/api/v1")
	{
		api.POST("/runs", s.createRun)
		api.GET("/runs", s.listRuns)
		api.GET("/runs/:id", s.getRun)
		api.POST("/calls", s.executeCall)

		api.GET("/schedules", s.listSchedules)
		api.POST("/schedules/reload", s.reloadSchedules)
		api.PUT("/schedules/:id", s.refreshSchedule)
		api.DELETE("/schedules/:id", s.stopSchedule)
		api.POST("/schedules/:id/fire", s.fireSchedule)

		if s.metrics != nil {
			api.GET("/metrics", s.metricsSnapshot)
		}
	}

	s.engine = engine
	return s
}

// Handler returns the router for use with an http.Server
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"elapsed": time.Since(start).Round(time.Millisecond),
		}).Debug("request handled")
	}
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	var validation *runner.ValidationError
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, scheduler.ErrRunning):
		return http.StatusConflict
	case errors.Is(err, scheduler.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.WithError(err).WithField("path", c.FullPath()).Error("request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
