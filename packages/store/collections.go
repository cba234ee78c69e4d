package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/abdul-hamid-achik/hitcron/packages/core/model"
)

// Collection returns a collection with its APIs sorted by order, ties kept in
// insertion order
func (s *Store) Collection(ctx context.Context, id string) (*model.Collection, error) {
	c := &model.Collection{}
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT id, application_id, name FROM collections WHERE id = ?`), id,
	).Scan(&c.ID, &c.ApplicationID, &c.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("collection %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, name, url, method, headers, body, ord
		FROM api_definitions
		WHERE collection_id = ?
		ORDER BY ord, position`), id)
	if err != nil {
		return nil, fmt.Errorf("query api definitions: %w", err)
	}
	defer rows.Close()

	c.APIs = make([]*model.ApiDefinition, 0)
	for rows.Next() {
		api := &model.ApiDefinition{}
		var headers, body sql.NullString
		if err := rows.Scan(&api.ID, &api.Name, &api.URL, &api.Method, &headers, &body, &api.Order); err != nil {
			return nil, fmt.Errorf("scan api definition: %w", err)
		}
		if err := decodeJSON(headers, &api.Headers); err != nil {
			return nil, err
		}
		if err := decodeJSON(body, &api.Body); err != nil {
			return nil, err
		}
		c.APIs = append(c.APIs, api)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate api definitions: %w", err)
	}
	return c, nil
}

// SaveCollection creates or replaces a collection and its API definitions
func (s *Store) SaveCollection(ctx context.Context, c *model.Collection) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.saveCollection(ctx, tx, c)
	})
}

func (s *Store) saveCollection(ctx context.Context, q querier, c *model.Collection) error {
	if _, err := q.ExecContext(ctx, s.rebind(`
		INSERT INTO collections (id, application_id, name) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET application_id = excluded.application_id, name = excluded.name`),
		c.ID, c.ApplicationID, c.Name); err != nil {
		return fmt.Errorf("save collection %q: %w", c.ID, err)
	}

	if _, err := q.ExecContext(ctx,
		s.rebind(`DELETE FROM api_definitions WHERE collection_id = ?`), c.ID); err != nil {
		return fmt.Errorf("clear api definitions: %w", err)
	}

	for i, api := range c.APIs {
		headers, err := encodeJSON(api.Headers)
		if err != nil {
			return err
		}
		body, err := encodeJSON(api.Body)
		if err != nil {
			return err
		}
		method := api.Method
		if method == "" {
			method = "GET"
		}
		if _, err := q.ExecContext(ctx, s.rebind(`
			INSERT INTO api_definitions (id, collection_id, name, url, method, headers, body, ord, position)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			api.ID, c.ID, api.Name, api.URL, method, headers, body, api.Order, i); err != nil {
			return fmt.Errorf("save api definition %q: %w", api.ID, err)
		}
	}
	return nil
}
