package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

// encodeJSON stores v as JSON text; nil and empty maps become NULL
func encodeJSON(v any) (sql.NullString, error) {
	switch t := v.(type) {
	case nil:
		return sql.NullString{}, nil
	case map[string]string:
		if len(t) == 0 {
			return sql.NullString{}, nil
		}
	case []string:
		if len(t) == 0 {
			return sql.NullString{}, nil
		}
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encoding column: %w", err)
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

func decodeJSON(ns sql.NullString, dst any) error {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	dec := json.NewDecoder(strings.NewReader(ns.String))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decoding column: %w", err)
	}
	return nil
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
