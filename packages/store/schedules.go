package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/abdul-hamid-achik/hitcron/packages/core/model"
)

const scheduleColumns = `id, cron_expression, environment_id, authentication_id, emails, is_active, last_run_at`

// ScheduledTest returns a single schedule record regardless of its active flag
func (s *Store) ScheduledTest(ctx context.Context, id string) (*model.ScheduledTest, error) {
	tests, err := s.scheduledTests(ctx, `SELECT `+scheduleColumns+` FROM scheduled_tests WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(tests) == 0 {
		return nil, fmt.Errorf("scheduled test %q: %w", id, ErrNotFound)
	}
	return tests[0], nil
}

// ActiveScheduledTests returns every schedule with isActive set
func (s *Store) ActiveScheduledTests(ctx context.Context) ([]*model.ScheduledTest, error) {
	return s.scheduledTests(ctx, `SELECT `+scheduleColumns+` FROM scheduled_tests WHERE is_active = ? ORDER BY id`, true)
}

// ScheduledTests returns every schedule record
func (s *Store) ScheduledTests(ctx context.Context) ([]*model.ScheduledTest, error) {
	return s.scheduledTests(ctx, `SELECT `+scheduleColumns+` FROM scheduled_tests ORDER BY id`)
}

func (s *Store) scheduledTests(ctx context.Context, query string, args ...any) ([]*model.ScheduledTest, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query scheduled tests: %w", err)
	}

	tests := make([]*model.ScheduledTest, 0)
	for rows.Next() {
		t := &model.ScheduledTest{}
		var emails sql.NullString
		var lastRun sql.NullTime
		if err := rows.Scan(&t.ID, &t.CronExpression, &t.EnvironmentID, &t.AuthenticationID, &emails, &t.IsActive, &lastRun); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan scheduled test: %w", err)
		}
		if err := decodeJSON(emails, &t.Emails); err != nil {
			_ = rows.Close()
			return nil, err
		}
		if lastRun.Valid {
			at := lastRun.Time.UTC()
			t.LastRunAt = &at
		}
		tests = append(tests, t)
	}
	err = rows.Err()
	_ = rows.Close()
	if err != nil {
		return nil, fmt.Errorf("iterate scheduled tests: %w", err)
	}

	// Collection references are loaded after the outer rows are closed;
	// SQLite runs on a single connection.
	for _, t := range tests {
		if t.CollectionIDs, err = s.scheduleCollections(ctx, t.ID); err != nil {
			return nil, err
		}
	}
	return tests, nil
}

func (s *Store) scheduleCollections(ctx context.Context, scheduleID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT collection_id FROM scheduled_test_collections
		WHERE scheduled_test_id = ? ORDER BY position`), scheduleID)
	if err != nil {
		return nil, fmt.Errorf("query schedule collections: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan schedule collection: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SaveScheduledTest creates or replaces a schedule record. An existing
// lastRunAt is preserved.
func (s *Store) SaveScheduledTest(ctx context.Context, t *model.ScheduledTest) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.saveScheduledTest(ctx, tx, t)
	})
}

func (s *Store) saveScheduledTest(ctx context.Context, q querier, t *model.ScheduledTest) error {
	emails, err := encodeJSON(t.Emails)
	if err != nil {
		return err
	}

	if _, err := q.ExecContext(ctx, s.rebind(`
		INSERT INTO scheduled_tests (id, cron_expression, environment_id, authentication_id, emails, is_active)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			cron_expression = excluded.cron_expression,
			environment_id = excluded.environment_id,
			authentication_id = excluded.authentication_id,
			emails = excluded.emails,
			is_active = excluded.is_active`),
		t.ID, t.CronExpression, t.EnvironmentID, t.AuthenticationID, emails, t.IsActive); err != nil {
		return fmt.Errorf("save scheduled test %q: %w", t.ID, err)
	}

	if _, err := q.ExecContext(ctx,
		s.rebind(`DELETE FROM scheduled_test_collections WHERE scheduled_test_id = ?`), t.ID); err != nil {
		return fmt.Errorf("clear schedule collections: %w", err)
	}

	for i, id := range t.CollectionIDs {
		if _, err := q.ExecContext(ctx, s.rebind(`
			INSERT INTO scheduled_test_collections (scheduled_test_id, position, collection_id)
			VALUES (?, ?, ?)`),
			t.ID, i, id); err != nil {
			return fmt.Errorf("save schedule collection %q: %w", id, err)
		}
	}
	return nil
}

// DeleteScheduledTest removes a schedule record and its collection references
func (s *Store) DeleteScheduledTest(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM scheduled_tests WHERE id = ?`), id)
		if err != nil {
			return fmt.Errorf("delete scheduled test: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("scheduled test %q: %w", id, ErrNotFound)
		}
		if _, err := tx.ExecContext(ctx,
			s.rebind(`DELETE FROM scheduled_test_collections WHERE scheduled_test_id = ?`), id); err != nil {
			return fmt.Errorf("delete schedule collections: %w", err)
		}
		return nil
	})
}

func (s *Store) UpdateLastRunAt(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		s.rebind(`UPDATE scheduled_tests SET last_run_at = ? WHERE id = ?`), at.UTC(), id)
	if err != nil {
		return fmt.Errorf("update last run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("scheduled test %q: %w", id, ErrNotFound)
	}
	return nil
}
