package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Register pure-Go SQLite driver for database/sql

	"github.com/mescon/beepwatch/internal/logger"
)

// journalPragmas are applied to every new connection pool. Optional ones
// only log on failure.
var journalPragmas = []struct {
	stmt     string
	required bool
}{
	{"PRAGMA journal_mode=WAL", true},
	{"PRAGMA busy_timeout=5000", true},
	// NORMAL is durable enough in WAL mode for an audit log
	{"PRAGMA synchronous=NORMAL", false},
	{"PRAGMA auto_vacuum=INCREMENTAL", false},
	{"PRAGMA temp_store=MEMORY", false},
	{"PRAGMA cache_size=-4000", false}, // 4MB
}

// Repository is the SQLite event journal.
type Repository struct {
	DB   *sql.DB
	path string
}

// NewRepository opens (or creates) the journal at dbPath and brings its
// schema up to date.
func NewRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	// One writer, a few readers for the API
	conn.SetMaxOpenConns(4)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxIdleTime(5 * time.Minute)

	repo := &Repository{DB: conn, path: dbPath}
	if err := repo.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return repo, nil
}

func (r *Repository) init() error {
	if err := r.DB.Ping(); err != nil {
		return fmt.Errorf("open journal: %w", err)
	}

	for _, p := range journalPragmas {
		if _, err := r.DB.Exec(p.stmt); err != nil {
			if p.required {
				return fmt.Errorf("configure journal (%s): %w", p.stmt, err)
			}
			logger.Debugf("Journal: optional %s failed: %v", p.stmt, err)
		}
	}

	if err := migrate(r.DB); err != nil {
		return fmt.Errorf("migrate journal: %w", err)
	}

	// Non-fatal: an audit log with a bad page is still worth writing to
	if err := r.quickCheck(); err != nil {
		logger.Errorf("Journal %s failed its integrity check: %v", r.path, err)
	}
	return nil
}

func (r *Repository) quickCheck() error {
	var result string
	if err := r.DB.QueryRow("PRAGMA quick_check").Scan(&result); err != nil {
		return fmt.Errorf("quick_check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("quick_check: %s", result)
	}
	return nil
}

// Close closes the connection pool without checkpointing.
func (r *Repository) Close() error {
	return r.DB.Close()
}

// GracefulClose folds the WAL back into the database file, then closes.
func (r *Repository) GracefulClose() error {
	if err := r.checkpoint("TRUNCATE"); err != nil {
		logger.Warnf("Journal: shutdown checkpoint failed: %v", err)
	}
	if err := r.DB.Close(); err != nil {
		return fmt.Errorf("close journal: %w", err)
	}
	logger.Infof("Journal %s closed", r.path)
	return nil
}

// Checkpoint runs a passive WAL checkpoint; it never blocks writers.
func (r *Repository) Checkpoint() error {
	return r.checkpoint("PASSIVE")
}

func (r *Repository) checkpoint(mode string) error {
	if _, err := r.DB.Exec("PRAGMA wal_checkpoint(" + mode + ")"); err != nil {
		return fmt.Errorf("wal checkpoint %s: %w", mode, err)
	}
	return nil
}

// StartPeriodicCheckpoint checkpoints every interval until the returned
// function is called. The stop function may be called more than once.
func (r *Repository) StartPeriodicCheckpoint(interval time.Duration) func() {
	done := make(chan struct{})
	var once sync.Once

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := r.Checkpoint(); err != nil {
					logger.Debugf("Journal: periodic checkpoint failed: %v", err)
				}
			}
		}
	}()

	return func() { once.Do(func() { close(done) }) }
}

// DatabaseStats describes the journal file and its contents.
type DatabaseStats struct {
	Path          string     `json:"path"`
	SizeBytes     int64      `json:"size_bytes"`
	FreelistBytes int64      `json:"freelist_bytes"`
	JournalMode   string     `json:"journal_mode"`
	Events        int64      `json:"events"`
	Sessions      int64      `json:"sessions"`
	OldestEvent   *time.Time `json:"oldest_event,omitempty"`
	NewestEvent   *time.Time `json:"newest_event,omitempty"`
}

// GetDatabaseStats reads file size, row counts and the journal's time span.
func (r *Repository) GetDatabaseStats() (DatabaseStats, error) {
	stats := DatabaseStats{Path: r.path}

	err := r.DB.QueryRow(`
		SELECT p.page_count * s.page_size, f.freelist_count * s.page_size
		FROM pragma_page_count() p, pragma_page_size() s, pragma_freelist_count() f`,
	).Scan(&stats.SizeBytes, &stats.FreelistBytes)
	if err != nil {
		return DatabaseStats{}, fmt.Errorf("read page stats: %w", err)
	}

	if err := r.DB.QueryRow("PRAGMA journal_mode").Scan(&stats.JournalMode); err != nil {
		return DatabaseStats{}, fmt.Errorf("read journal_mode: %w", err)
	}

	var oldest, newest sql.NullString
	err = r.DB.QueryRow(`
		SELECT
			(SELECT COUNT(*) FROM events),
			(SELECT COUNT(*) FROM sessions),
			(SELECT MIN(created_at) FROM events),
			(SELECT MAX(created_at) FROM events)`,
	).Scan(&stats.Events, &stats.Sessions, &oldest, &newest)
	if err != nil {
		return DatabaseStats{}, fmt.Errorf("read row counts: %w", err)
	}
	stats.OldestEvent = parseOptionalTimestamp(oldest)
	stats.NewestEvent = parseOptionalTimestamp(newest)

	return stats, nil
}

func parseOptionalTimestamp(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := parseTimestamp(s.String)
	if err != nil {
		return nil
	}
	return &t
}
