package store

import (
	"context"
	"database/sql"

	"github.com/abdul-hamid-achik/hitcron/packages/workspace"
)

// ImportSummary counts the records written by Import
type ImportSummary struct {
	Environments    int `json:"environments"`
	Authentications int `json:"authentications"`
	Collections     int `json:"collections"`
	APIs            int `json:"apis"`
	Schedules       int `json:"schedules"`
}

// Import upserts every record of a workspace in one transaction
func (s *Store) Import(ctx context.Context, ws *workspace.Workspace) (*ImportSummary, error) {
	summary := &ImportSummary{}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, env := range ws.Environments {
			if err := s.saveEnvironment(ctx, tx, env); err != nil {
				return err
			}
			summary.Environments++
		}
		for _, auth := range ws.Authentications {
			if err := s.saveAuthentication(ctx, tx, auth); err != nil {
				return err
			}
			summary.Authentications++
		}
		for _, c := range ws.Collections {
			if err := s.saveCollection(ctx, tx, c); err != nil {
				return err
			}
			summary.Collections++
			summary.APIs += len(c.APIs)
		}
		for _, t := range ws.Schedules {
			if err := s.saveScheduledTest(ctx, tx, t); err != nil {
				return err
			}
			summary.Schedules++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithField("path", ws.Path).Infof("imported %d environments, %d collections (%d apis), %d schedules",
		summary.Environments, summary.Collections, summary.APIs, summary.Schedules)
	return summary, nil
}
