package repository

import (
	"database/sql"
	"fmt"
	"time"
)

// ActionLogRepositoryInterface records when bulk actions last ran. The
// cooldown guard reads the newest entry per action kind.
type ActionLogRepositoryInterface interface {
	Record(kind string, at time.Time) error
	LastRun(kind string) (*time.Time, error)
}

type ActionLogRepository struct {
	DB *sql.DB
}

func (r *ActionLogRepository) Record(kind string, at time.Time) error {
	query := `INSERT INTO action_log (kind, created_at) VALUES ($1, $2)`
	_, err := r.DB.Exec(query, kind, at)
	if err != nil {
		return fmt.Errorf("error recording action %s: %w", kind, err)
	}
	return nil
}

// LastRun returns the timestamp of the most recent entry for kind, or nil
// when the action has never run.
func (r *ActionLogRepository) LastRun(kind string) (*time.Time, error) {
	query := `SELECT created_at FROM action_log WHERE kind=$1 ORDER BY created_at DESC LIMIT 1`
	var at time.Time
	err := r.DB.QueryRow(query, kind).Scan(&at)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("error fetching last run for %s: %w", kind, err)
	}
	return &at, nil
}

var _ ActionLogRepositoryInterface = (*ActionLogRepository)(nil)
