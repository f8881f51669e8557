package models

import (
	"errors"
	"time"
)

// SyncState tracks whether a locally cached submission has reached the
// remote store.
type SyncState string

const (
	SyncPending SyncState = "pending"
	SyncDone    SyncState = "synced"
	SyncFailed  SyncState = "failed"
)

// ErrMalformed marks a remote record that is missing required fields.
var ErrMalformed = errors.New("malformed submission record")

// GeoPoint is an optional location tag. Both coordinates are always set
// together; a submission either has a full location or none.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Submission represents a user's photo entry for the daily prompt
type Submission struct {
	ID        string    `json:"id"`
	Image     string    `json:"image"`
	Location  *GeoPoint `json:"location,omitempty"`
	Timestamp int64     `json:"timestamp"`
	UserID    string    `json:"user_id"`
	Votes     int       `json:"votes"`
}

// Validate reports whether the submission carries every required field.
// Records failing validation are skipped by read paths, never fatal.
func (s *Submission) Validate() error {
	if s.ID == "" || s.Image == "" || s.UserID == "" {
		return ErrMalformed
	}
	return nil
}

// CachedSubmission is the local-cache copy of a submission together with
// its remote sync state.
type CachedSubmission struct {
	Submission
	SyncState SyncState `json:"sync_state"`
}

// User represents a registered user
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	PushToken    *string   `json:"push_token,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
