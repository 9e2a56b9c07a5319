package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// AnnotationStore persists client-only email annotations in a local SQLite
// database. The backend never sees these: a star set today must still be
// there after a full resync and after a restart.
type AnnotationStore struct {
	db *sqlx.DB
}

// NewAnnotationStore opens (or creates) the annotation database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewAnnotationStore(dbPath string) (*AnnotationStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening annotation db: %w", err)
	}

	// WAL keeps reads cheap while the sync goroutine writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &AnnotationStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *AnnotationStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *AnnotationStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			return fmt.Errorf("recording migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// StarredIDs returns every email id with a persisted star.
func (s *AnnotationStore) StarredIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids, "SELECT email_id FROM starred ORDER BY starred_at")
	if err != nil {
		return nil, fmt.Errorf("loading starred ids: %w", err)
	}
	return ids, nil
}

// SetStarred records or removes the star for one email id.
func (s *AnnotationStore) SetStarred(ctx context.Context, id string, starred bool) error {
	if starred {
		_, err := s.db.ExecContext(ctx,
			"INSERT OR REPLACE INTO starred (email_id, starred_at) VALUES (?, ?)",
			id, time.Now().UTC(),
		)
		if err != nil {
			return fmt.Errorf("starring %s: %w", id, err)
		}
		return nil
	}

	_, err := s.db.ExecContext(ctx, "DELETE FROM starred WHERE email_id = ?", id)
	if err != nil {
		return fmt.Errorf("unstarring %s: %w", id, err)
	}
	return nil
}

// Prune drops stars for ids no longer present in the working set, keeping
// the table from growing without bound as old mail ages out.
func (s *AnnotationStore) Prune(ctx context.Context, liveIDs []string) error {
	if len(liveIDs) == 0 {
		return nil
	}

	query, args, err := sqlx.In("DELETE FROM starred WHERE email_id NOT IN (?)", liveIDs)
	if err != nil {
		return fmt.Errorf("building prune query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("pruning stars: %w", err)
	}
	return nil
}
