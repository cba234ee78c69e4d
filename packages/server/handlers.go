package server

import (
	"net/http"

	"github.com/abdul-hamid-achik/hitcron/packages/core/model"
	"github.com/abdul-hamid-achik/hitcron/packages/core/runner"
	"github.com/abdul-hamid-achik/hitcron/packages/scheduler"
	"github.com/gin-gonic/gin"
)

// GET /healthz
func (s *Server) healthz(c *gin.Context) {
	if err := s.store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": "store ping failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type runRequest struct {
	ApplicationID    string                 `json:"applicationId"`
	EnvironmentID    string                 `json:"environmentId"`
	AuthenticationID string                 `json:"authenticationId"`
	CollectionID     string                 `json:"collectionId"`
	APIs             []*model.ApiDefinition `json:"apis"`
	PreviousResponse any                    `json:"previousResponse"`
	SessionID        string                 `json:"sessionId"`
}

type runResponse struct {
	*model.RunResult
	// LastResponse feeds previousResponse of a follow-up batch
	LastResponse any `json:"lastResponse"`
}

// POST /api/v1/runs
func (s *Server) createRun(c *gin.Context) {
	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	params := runner.BatchParams{
		ApplicationID:    req.ApplicationID,
		EnvironmentID:    req.EnvironmentID,
		AuthenticationID: req.AuthenticationID,
		APIs:             req.APIs,
		PreviousResponse: req.PreviousResponse,
		SessionID:        req.SessionID,
	}

	if req.CollectionID != "" && len(req.APIs) == 0 {
		collection, err := s.store.Collection(c.Request.Context(), req.CollectionID)
		if err != nil {
			s.fail(c, err)
			return
		}
		params.APIs = collection.APIs
		if params.ApplicationID == "" {
			params.ApplicationID = collection.ApplicationID
		}
	}

	run, err := s.runner.RunBatch(c.Request.Context(), params)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, runResponse{RunResult: run, LastResponse: run.LastResponse})
}

// GET /api/v1/runs?sessionId=...
func (s *Server) listRuns(c *gin.Context) {
	sessionID := c.Query("sessionId")
	if sessionID == "" {
		s.fail(c, &runner.ValidationError{Field: "sessionId", Message: "session id is required"})
		return
	}
	runs, err := s.store.ListRuns(c.Request.Context(), sessionID)
	if err != nil {
		s.fail(c, err)
		return
	}
	if runs == nil {
		runs = []*model.RunResult{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// GET /api/v1/runs/:id
func (s *Server) getRun(c *gin.Context) {
	run, err := s.store.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

type callRequest struct {
	EnvironmentID    string               `json:"environmentId"`
	AuthenticationID string               `json:"authenticationId"`
	API              *model.ApiDefinition `json:"api"`
	PreviousResponse any                  `json:"previousResponse"`
}

// POST /api/v1/calls
func (s *Server) executeCall(c *gin.Context) {
	var req callRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.EnvironmentID == "" {
		s.fail(c, &runner.ValidationError{Field: "environmentId", Message: "environment id is required"})
		return
	}
	if req.API == nil {
		s.fail(c, &runner.ValidationError{Field: "api", Message: "api definition is required"})
		return
	}

	result, err := s.runner.ExecuteCall(c.Request.Context(), req.EnvironmentID, req.AuthenticationID, req.API, req.PreviousResponse)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type listSchedulesResponse struct {
	Schedules []*model.ScheduledTest `json:"schedules"`
	Jobs      []scheduler.Entry      `json:"jobs"`
}

// GET /api/v1/schedules
func (s *Server) listSchedules(c *gin.Context) {
	tests, err := s.store.ScheduledTests(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	resp := listSchedulesResponse{
		Schedules: tests,
		Jobs:      s.scheduler.Entries(),
	}
	if resp.Schedules == nil {
		resp.Schedules = []*model.ScheduledTest{}
	}
	c.JSON(http.StatusOK, resp)
}

// PUT /api/v1/schedules/:id
// The stored record is the source of truth: an active record is
// (re)scheduled, an inactive one only has its job removed.
func (s *Server) refreshSchedule(c *gin.Context) {
	test, err := s.store.ScheduledTest(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := s.scheduler.Schedule(test); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": test.ID, "isActive": test.IsActive})
}

// DELETE /api/v1/schedules/:id
func (s *Server) stopSchedule(c *gin.Context) {
	id := c.Param("id")
	stopped := s.scheduler.Stop(id)
	c.JSON(http.StatusOK, gin.H{"id": id, "stopped": stopped})
}

// POST /api/v1/schedules/:id/fire
func (s *Server) fireSchedule(c *gin.Context) {
	test, err := s.store.ScheduledTest(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := s.scheduler.Trigger(test); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"id": test.ID})
}

// POST /api/v1/schedules/reload
func (s *Server) reloadSchedules(c *gin.Context) {
	count, err := s.scheduler.InitializeAllTasks(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scheduled": count})
}

// GET /api/v1/metrics
func (s *Server) metricsSnapshot(c *gin.Context) {
	c.JSON(http.StatusOK, s.metrics.Snapshot())
}
