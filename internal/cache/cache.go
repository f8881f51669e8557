// Package cache is the user-scoped read replica of the remote submission
// store. It is written through on submit and serves the offline profile
// view; it is never reconciled back from the remote feed.
package cache

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"photoduel-backend/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is a SQLite-backed submission cache keyed by submission id.
type Store struct {
	db *sqlx.DB
}

// Open connects to the SQLite cache at path, creating the file and running
// migrations as needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	db, err := sqlx.Connect("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}

	// SQLite allows a single writer; serialize access through one conn.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := migrate(db.DB); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	dir, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}
	goose.SetBaseFS(dir)
	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("failed to run cache migrations: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

type row struct {
	ID        string           `db:"id"`
	Image     string           `db:"image"`
	Latitude  *float64         `db:"latitude"`
	Longitude *float64         `db:"longitude"`
	Timestamp int64            `db:"timestamp"`
	UserID    string           `db:"user_id"`
	Votes     int              `db:"votes"`
	SyncState models.SyncState `db:"sync_state"`
}

func (r row) cached() *models.CachedSubmission {
	c := &models.CachedSubmission{
		Submission: models.Submission{
			ID:        r.ID,
			Image:     r.Image,
			Timestamp: r.Timestamp,
			UserID:    r.UserID,
			Votes:     r.Votes,
		},
		SyncState: r.SyncState,
	}
	if r.Latitude != nil && r.Longitude != nil {
		c.Location = &models.GeoPoint{Latitude: *r.Latitude, Longitude: *r.Longitude}
	}
	return c
}

// Insert writes a submission to the cache with the given sync state,
// replacing any existing row with the same id.
func (s *Store) Insert(ctx context.Context, sub *models.Submission, state models.SyncState) error {
	query := `
		INSERT OR REPLACE INTO submissions
			(id, image, latitude, longitude, timestamp, user_id, votes, sync_state)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	var lat, lon *float64
	if sub.Location != nil {
		lat, lon = &sub.Location.Latitude, &sub.Location.Longitude
	}
	_, err := s.db.ExecContext(ctx, query,
		sub.ID, sub.Image, lat, lon, sub.Timestamp, sub.UserID, sub.Votes, state,
	)
	if err != nil {
		return fmt.Errorf("failed to cache submission: %w", err)
	}
	return nil
}

// SetSyncState records the outcome of a remote write for a cached submission.
func (s *Store) SetSyncState(ctx context.Context, id string, state models.SyncState) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE submissions SET sync_state = ? WHERE id = ?`, state, id)
	if err != nil {
		return fmt.Errorf("failed to update sync state: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("submission %s not cached", id)
	}
	return nil
}

// ByID retrieves a cached submission by id.
func (s *Store) ByID(ctx context.Context, id string) (*models.CachedSubmission, error) {
	var r row
	err := s.db.GetContext(ctx, &r,
		`SELECT id, image, latitude, longitude, timestamp, user_id, votes, sync_state
		 FROM submissions WHERE id = ?`, id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("submission %s not cached", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache: %w", err)
	}
	return r.cached(), nil
}

// ByUser retrieves a user's cached submissions, newest first, ties broken
// by id for stable ordering.
func (s *Store) ByUser(ctx context.Context, userID string) ([]*models.CachedSubmission, error) {
	var rows []row
	err := s.db.SelectContext(ctx, &rows,
		`SELECT id, image, latitude, longitude, timestamp, user_id, votes, sync_state
		 FROM submissions
		 WHERE user_id = ?
		 ORDER BY timestamp DESC, id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache: %w", err)
	}
	subs := make([]*models.CachedSubmission, 0, len(rows))
	for _, r := range rows {
		subs = append(subs, r.cached())
	}
	return subs, nil
}

// TotalVotes sums the vote counts across a user's cached submissions.
func (s *Store) TotalVotes(ctx context.Context, userID string) (int, error) {
	var total int
	err := s.db.GetContext(ctx, &total,
		`SELECT COALESCE(SUM(votes), 0) FROM submissions WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to sum votes: %w", err)
	}
	return total, nil
}

// SetVotes refreshes the cached vote count for a submission. Missing rows
// are ignored: the cache only mirrors the user's own entries.
func (s *Store) SetVotes(ctx context.Context, id string, votes int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE submissions SET votes = ? WHERE id = ?`, votes, id)
	if err != nil {
		return fmt.Errorf("failed to update cached votes: %w", err)
	}
	return nil
}
