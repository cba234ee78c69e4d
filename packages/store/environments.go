package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/abdul-hamid-achik/hitcron/packages/core/model"
)

// Environment returns an environment with its variables in declaration order
func (s *Store) Environment(ctx context.Context, id string) (*model.Environment, error) {
	env := &model.Environment{}
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT id, name FROM environments WHERE id = ?`), id,
	).Scan(&env.ID, &env.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("environment %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query environment: %w", err)
	}

	env.Variables, err = s.variables(ctx, id)
	if err != nil {
		return nil, err
	}
	return env, nil
}

// EnvironmentVariables returns the variables of an environment. It fails with
// ErrNotFound when the environment does not exist.
func (s *Store) EnvironmentVariables(ctx context.Context, environmentID string) ([]model.EnvironmentVariable, error) {
	env, err := s.Environment(ctx, environmentID)
	if err != nil {
		return nil, err
	}
	return env.Variables, nil
}

func (s *Store) variables(ctx context.Context, environmentID string) ([]model.EnvironmentVariable, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT name, value FROM environment_variables WHERE environment_id = ? ORDER BY position`),
		environmentID)
	if err != nil {
		return nil, fmt.Errorf("query environment variables: %w", err)
	}
	defer rows.Close()

	vars := make([]model.EnvironmentVariable, 0)
	for rows.Next() {
		var v model.EnvironmentVariable
		if err := rows.Scan(&v.Name, &v.Value); err != nil {
			return nil, fmt.Errorf("scan environment variable: %w", err)
		}
		vars = append(vars, v)
	}
	return vars, rows.Err()
}

// SaveEnvironment creates or replaces an environment and all of its variables
func (s *Store) SaveEnvironment(ctx context.Context, env *model.Environment) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.saveEnvironment(ctx, tx, env)
	})
}

func (s *Store) saveEnvironment(ctx context.Context, q querier, env *model.Environment) error {
	if _, err := q.ExecContext(ctx, s.rebind(`
		INSERT INTO environments (id, name) VALUES (?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name`),
		env.ID, env.Name); err != nil {
		return fmt.Errorf("save environment %q: %w", env.ID, err)
	}

	if _, err := q.ExecContext(ctx,
		s.rebind(`DELETE FROM environment_variables WHERE environment_id = ?`), env.ID); err != nil {
		return fmt.Errorf("clear environment variables: %w", err)
	}

	for i, v := range env.Variables {
		if _, err := q.ExecContext(ctx, s.rebind(`
			INSERT INTO environment_variables (environment_id, position, name, value)
			VALUES (?, ?, ?, ?)`),
			env.ID, i, v.Name, v.Value); err != nil {
			return fmt.Errorf("save environment variable %q: %w", v.Name, err)
		}
	}
	return nil
}

func (s *Store) Authentication(ctx context.Context, id string) (*model.AuthenticationCredential, error) {
	auth := &model.AuthenticationCredential{}
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT id, api_key, token FROM authentications WHERE id = ?`), id,
	).Scan(&auth.ID, &auth.APIKey, &auth.Token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("authentication %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query authentication: %w", err)
	}
	return auth, nil
}

func (s *Store) SaveAuthentication(ctx context.Context, auth *model.AuthenticationCredential) error {
	return s.saveAuthentication(ctx, s.db, auth)
}

func (s *Store) saveAuthentication(ctx context.Context, q querier, auth *model.AuthenticationCredential) error {
	_, err := q.ExecContext(ctx, s.rebind(`
		INSERT INTO authentications (id, api_key, token) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET api_key = excluded.api_key, token = excluded.token`),
		auth.ID, auth.APIKey, auth.Token)
	if err != nil {
		return fmt.Errorf("save authentication %q: %w", auth.ID, err)
	}
	return nil
}
