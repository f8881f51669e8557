package repository

import (
	"context"
	"errors"
	"fmt"

	"photoduel-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// ErrNotFound is returned when a submission does not exist in the remote store.
var ErrNotFound = errors.New("submission not found")

// ErrVoteConflict is returned when a vote transaction keeps colliding with
// concurrent writers after all retries.
var ErrVoteConflict = errors.New("vote transaction conflicted")

const voteRetries = 5

// SubmissionRepository handles remote store operations for submissions
type SubmissionRepository struct {
	db *pgxpool.Pool
}

// NewSubmissionRepository creates a new submission repository
func NewSubmissionRepository(db *pgxpool.Pool) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// Create writes a new submission to the shared store
func (r *SubmissionRepository) Create(ctx context.Context, sub *models.Submission) error {
	query := `
		INSERT INTO submissions (id, image, latitude, longitude, timestamp, user_id, votes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	var lat, lon *float64
	if sub.Location != nil {
		lat, lon = &sub.Location.Latitude, &sub.Location.Longitude
	}
	_, err := r.db.Exec(ctx, query,
		sub.ID, sub.Image, lat, lon, sub.Timestamp, sub.UserID, sub.Votes,
	)
	if err != nil {
		return fmt.Errorf("failed to create submission: %w", err)
	}
	return nil
}

// GetByID retrieves a submission by ID
func (r *SubmissionRepository) GetByID(ctx context.Context, id string) (*models.Submission, error) {
	query := `
		SELECT id, image, latitude, longitude, timestamp, user_id, votes
		FROM submissions
		WHERE id = $1
	`
	sub, err := scanSubmission(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return sub, nil
}

// ListAll retrieves every submission ordered for the voting view: most
// voted first, ties broken by id so re-renders are stable.
func (r *SubmissionRepository) ListAll(ctx context.Context) ([]*models.Submission, error) {
	query := `
		SELECT id, image, latitude, longitude, timestamp, user_id, votes
		FROM submissions
		ORDER BY votes DESC, id ASC
	`
	return r.list(ctx, query)
}

// ListByUser retrieves a user's submissions ordered for the profile view:
// newest first, ties broken by id.
func (r *SubmissionRepository) ListByUser(ctx context.Context, userID string) ([]*models.Submission, error) {
	query := `
		SELECT id, image, latitude, longitude, timestamp, user_id, votes
		FROM submissions
		WHERE user_id = $1
		ORDER BY timestamp DESC, id ASC
	`
	return r.list(ctx, query, userID)
}

func (r *SubmissionRepository) list(ctx context.Context, query string, args ...any) ([]*models.Submission, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	var subs []*models.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating submissions: %w", err)
	}
	return subs, nil
}

func scanSubmission(row pgx.Row) (*models.Submission, error) {
	var sub models.Submission
	var lat, lon *float64
	err := row.Scan(&sub.ID, &sub.Image, &lat, &lon, &sub.Timestamp, &sub.UserID, &sub.Votes)
	if err != nil {
		return nil, err
	}
	if lat != nil && lon != nil {
		sub.Location = &models.GeoPoint{Latitude: *lat, Longitude: *lon}
	}
	return &sub, nil
}

// ApplyVote atomically adjusts a submission's vote count by delta and
// returns the new count. The read-modify-write runs in a repeatable-read
// transaction and is retried when a concurrent voter wins the write race,
// so no update is ever lost. No floor is enforced: counts may go negative.
func (r *SubmissionRepository) ApplyVote(ctx context.Context, id string, delta int) (int, error) {
	for attempt := 0; attempt < voteRetries; attempt++ {
		votes, err := r.applyVoteOnce(ctx, id, delta)
		if err == nil {
			return votes, nil
		}
		if !isSerializationFailure(err) {
			return 0, err
		}
		log.Debug().
			Str("submission_id", id).
			Int("attempt", attempt+1).
			Msg("Vote transaction conflicted, retrying")
	}
	return 0, ErrVoteConflict
}

func (r *SubmissionRepository) applyVoteOnce(ctx context.Context, id string, delta int) (int, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return 0, fmt.Errorf("failed to begin vote transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var votes int
	err = tx.QueryRow(ctx, `SELECT votes FROM submissions WHERE id = $1`, id).Scan(&votes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("failed to read vote count: %w", err)
	}

	votes += delta
	if _, err := tx.Exec(ctx, `UPDATE submissions SET votes = $1 WHERE id = $2`, votes, id); err != nil {
		return 0, fmt.Errorf("failed to write vote count: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit vote transaction: %w", err)
	}
	return votes, nil
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "40001"
}
