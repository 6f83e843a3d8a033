package db

import (
	"fmt"
	"time"

	"github.com/mescon/beepwatch/internal/logger"
)

// MaintenanceResult reports what a maintenance run removed.
type MaintenanceResult struct {
	EventsPruned   int64 `json:"events_pruned"`
	SessionsPruned int64 `json:"sessions_pruned"`
}

// compactStatements run after pruning. Failures are logged, not returned.
var compactStatements = []string{
	"PRAGMA incremental_vacuum",
	"ANALYZE",
	"PRAGMA wal_checkpoint(TRUNCATE)",
}

// RunMaintenance deletes journal rows older than retentionDays (0 keeps
// everything), then reclaims space.
func (r *Repository) RunMaintenance(retentionDays int) (MaintenanceResult, error) {
	var result MaintenanceResult
	if retentionDays > 0 {
		var err error
		result, err = r.pruneBefore(time.Now().AddDate(0, 0, -retentionDays))
		if err != nil {
			return result, err
		}
	}

	for _, stmt := range compactStatements {
		if _, err := ExecWithRetry(r.DB, stmt); err != nil {
			logger.Warnf("Journal maintenance: %s failed: %v", stmt, err)
		}
	}

	logger.Infof("Journal maintenance: pruned %d events and %d sessions", result.EventsPruned, result.SessionsPruned)
	return result, nil
}

// pruneBefore removes events and session rollups last touched before cutoff
// in a single transaction.
func (r *Repository) pruneBefore(cutoff time.Time) (MaintenanceResult, error) {
	ts := formatTimestamp(cutoff)
	var result MaintenanceResult

	err := withRetry("prune journal", func() error {
		tx, err := r.DB.Begin()
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		res, err := tx.Exec("DELETE FROM events WHERE created_at < ?", ts)
		if err != nil {
			return err
		}
		events, _ := res.RowsAffected()

		res, err = tx.Exec("DELETE FROM sessions WHERE last_seen_at < ?", ts)
		if err != nil {
			return err
		}
		sessions, _ := res.RowsAffected()

		if err := tx.Commit(); err != nil {
			return err
		}
		result = MaintenanceResult{EventsPruned: events, SessionsPruned: sessions}
		return nil
	})
	if err != nil {
		return MaintenanceResult{}, fmt.Errorf("prune journal: %w", err)
	}
	return result, nil
}
