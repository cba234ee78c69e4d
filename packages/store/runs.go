package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/abdul-hamid-achik/hitcron/packages/core/model"
)

// CreateRun writes a run and its calls in a single transaction
func (s *Store) CreateRun(ctx context.Context, run *model.RunResult) error {
	if run.ID == "" {
		return errors.New("run id is required")
	}
	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, s.rebind(`
			INSERT INTO test_runs (id, application_id, environment_id, session_id, status, duration_ms, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`),
			run.ID, run.ApplicationID, run.EnvironmentID, run.SessionID, string(run.Status), run.DurationMs, createdAt.UTC()); err != nil {
			return fmt.Errorf("insert run: %w", err)
		}

		for i, call := range run.Calls {
			headers, err := encodeJSON(call.ResponseHeaders)
			if err != nil {
				return err
			}
			body, err := encodeJSON(call.ResponseBody)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, s.rebind(`
				INSERT INTO test_run_calls (run_id, position, api_id, status_code, duration_ms, response_headers, response_body, error)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
				run.ID, i, call.ApiID, call.StatusCode, call.DurationMs, headers, body, nullString(call.Error)); err != nil {
				return fmt.Errorf("insert run call %d: %w", i, err)
			}
		}
		return nil
	})
}

const runColumns = `id, application_id, environment_id, session_id, status, duration_ms, created_at`

func (s *Store) GetRun(ctx context.Context, id string) (*model.RunResult, error) {
	runs, err := s.runs(ctx, `SELECT `+runColumns+` FROM test_runs WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("run %q: %w", id, ErrNotFound)
	}
	return runs[0], nil
}

// ListRuns returns the runs tagged with sessionID, oldest first
func (s *Store) ListRuns(ctx context.Context, sessionID string) ([]*model.RunResult, error) {
	return s.runs(ctx, `SELECT `+runColumns+` FROM test_runs WHERE session_id = ? ORDER BY created_at, id`, sessionID)
}

func (s *Store) runs(ctx context.Context, query string, args ...any) ([]*model.RunResult, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}

	runs := make([]*model.RunResult, 0)
	for rows.Next() {
		run := &model.RunResult{}
		var status string
		if err := rows.Scan(&run.ID, &run.ApplicationID, &run.EnvironmentID, &run.SessionID, &status, &run.DurationMs, &run.CreatedAt); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Status = model.RunStatus(status)
		run.CreatedAt = run.CreatedAt.UTC()
		runs = append(runs, run)
	}
	err = rows.Err()
	_ = rows.Close()
	if err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	for _, run := range runs {
		if run.Calls, err = s.runCalls(ctx, run.ID); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

func (s *Store) runCalls(ctx context.Context, runID string) ([]*model.CallResult, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT api_id, status_code, duration_ms, response_headers, response_body, error
		FROM test_run_calls WHERE run_id = ? ORDER BY position`), runID)
	if err != nil {
		return nil, fmt.Errorf("query run calls: %w", err)
	}
	defer rows.Close()

	calls := make([]*model.CallResult, 0)
	for rows.Next() {
		call := &model.CallResult{}
		var headers, body, callErr sql.NullString
		if err := rows.Scan(&call.ApiID, &call.StatusCode, &call.DurationMs, &headers, &body, &callErr); err != nil {
			return nil, fmt.Errorf("scan run call: %w", err)
		}
		if err := decodeJSON(headers, &call.ResponseHeaders); err != nil {
			return nil, err
		}
		if err := decodeJSON(body, &call.ResponseBody); err != nil {
			return nil, err
		}
		call.Error = stringPtr(callErr)
		calls = append(calls, call)
	}
	return calls, rows.Err()
}
