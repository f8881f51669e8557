package services

import (
	"context"
	"fmt"
	"time"

	"photoduel-backend/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// CacheStore is the local write-through cache of a user's own submissions.
type CacheStore interface {
	Insert(ctx context.Context, sub *models.Submission, state models.SyncState) error
	SetSyncState(ctx context.Context, id string, state models.SyncState) error
	ByID(ctx context.Context, id string) (*models.CachedSubmission, error)
	ByUser(ctx context.Context, userID string) ([]*models.CachedSubmission, error)
	TotalVotes(ctx context.Context, userID string) (int, error)
	SetVotes(ctx context.Context, id string, votes int) error
}

// RemoteStore is the shared source of truth for all submissions.
type RemoteStore interface {
	Create(ctx context.Context, sub *models.Submission) error
	GetByID(ctx context.Context, id string) (*models.Submission, error)
	ListAll(ctx context.Context) ([]*models.Submission, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Submission, error)
	ApplyVote(ctx context.Context, id string, delta int) (int, error)
}

// BlobStore offloads opaque image payloads, returning a stable reference.
type BlobStore interface {
	Store(ctx context.Context, key, payload string) (string, error)
}

// SubmitRequest carries a submit call's inputs. Latitude and longitude are
// all-or-nothing; supplying exactly one is a validation error.
type SubmitRequest struct {
	Image     string
	Latitude  *float64
	Longitude *float64
	UserID    string
}

// SubmissionService reconciles the local cache with the remote store:
// write-through on submit, live ordered feeds on read.
type SubmissionService struct {
	cache  CacheStore
	remote RemoteStore
	stream ChangeStream
	blobs  BlobStore // optional
}

// NewSubmissionService creates a new submission service. blobs may be nil,
// in which case image payloads are stored inline.
func NewSubmissionService(cache CacheStore, remote RemoteStore, stream ChangeStream, blobs BlobStore) *SubmissionService {
	return &SubmissionService{
		cache:  cache,
		remote: remote,
		stream: stream,
		blobs:  blobs,
	}
}

// Submit validates the request, writes the submission to the local cache,
// and returns it immediately. The remote write runs in the background; its
// outcome arrives on the returned channel and is recorded in the cache as
// synced or failed. The two writes are not transactional: a submission can
// exist locally while absent from the shared voting pool until resynced.
func (s *SubmissionService) Submit(ctx context.Context, req SubmitRequest) (*models.Submission, <-chan error, error) {
	if req.Image == "" {
		return nil, nil, ErrEmptyImage
	}
	if req.UserID == "" {
		return nil, nil, ErrNoIdentity
	}
	if (req.Latitude == nil) != (req.Longitude == nil) {
		return nil, nil, ErrPartialLocation
	}

	sub := &models.Submission{
		ID:        uuid.New().String(),
		Image:     req.Image,
		Timestamp: time.Now().UnixMilli(),
		UserID:    req.UserID,
		Votes:     0,
	}
	if req.Latitude != nil {
		sub.Location = &models.GeoPoint{Latitude: *req.Latitude, Longitude: *req.Longitude}
	}

	if s.blobs != nil {
		ref, err := s.blobs.Store(ctx, "submissions/"+sub.ID, req.Image)
		if err != nil {
			// Offload is best-effort; the payload stays inline.
			log.Warn().Err(err).Str("submission_id", sub.ID).Msg("Blob offload failed, storing payload inline")
		} else {
			sub.Image = ref
		}
	}

	if err := s.cache.Insert(ctx, sub, models.SyncPending); err != nil {
		return nil, nil, fmt.Errorf("local write failed: %w", err)
	}

	result := make(chan error, 1)
	go s.syncRemote(context.WithoutCancel(ctx), sub, result)

	log.Info().
		Str("submission_id", sub.ID).
		Str("user_id", sub.UserID).
		Bool("located", sub.Location != nil).
		Msg("Submission created")

	return sub, result, nil
}

func (s *SubmissionService) syncRemote(ctx context.Context, sub *models.Submission, result chan<- error) {
	if err := s.remote.Create(ctx, sub); err != nil {
		log.Error().Err(err).Str("submission_id", sub.ID).Msg("Remote write failed, submission pending resync")
		if stateErr := s.cache.SetSyncState(ctx, sub.ID, models.SyncFailed); stateErr != nil {
			log.Error().Err(stateErr).Str("submission_id", sub.ID).Msg("Failed to record sync failure")
		}
		result <- fmt.Errorf("remote write failed: %w", err)
		return
	}

	if err := s.cache.SetSyncState(ctx, sub.ID, models.SyncDone); err != nil {
		log.Error().Err(err).Str("submission_id", sub.ID).Msg("Failed to record sync success")
	}
	if err := s.stream.Publish(ctx, Change{Kind: ChangeCreated, SubmissionID: sub.ID, UserID: sub.UserID}); err != nil {
		log.Error().Err(err).Str("submission_id", sub.ID).Msg("Failed to publish change")
	}
	result <- nil
}

// Resync retries the remote write for a submission whose initial sync
// failed. Retrying is caller policy; the service never retries on its own.
func (s *SubmissionService) Resync(ctx context.Context, id, userID string) error {
	cached, err := s.cache.ByID(ctx, id)
	if err != nil {
		return err
	}
	if cached.UserID != userID {
		return ErrNotOwner
	}
	if cached.SyncState == models.SyncDone {
		return ErrAlreadySynced
	}

	if err := s.remote.Create(ctx, &cached.Submission); err != nil {
		if stateErr := s.cache.SetSyncState(ctx, id, models.SyncFailed); stateErr != nil {
			log.Error().Err(stateErr).Str("submission_id", id).Msg("Failed to record sync failure")
		}
		return fmt.Errorf("remote write failed: %w", err)
	}
	if err := s.cache.SetSyncState(ctx, id, models.SyncDone); err != nil {
		return err
	}
	if err := s.stream.Publish(ctx, Change{Kind: ChangeSynced, SubmissionID: id, UserID: userID}); err != nil {
		log.Error().Err(err).Str("submission_id", id).Msg("Failed to publish change")
	}

	log.Info().Str("submission_id", id).Msg("Submission resynced")
	return nil
}

// VotingList returns the current shared voting view, most voted first.
func (s *SubmissionService) VotingList(ctx context.Context) ([]*models.Submission, error) {
	subs, err := s.remote.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return filterValid(subs), nil
}

// filterValid drops malformed remote records. A bad record is skipped and
// logged; it never fails the whole view.
func filterValid(subs []*models.Submission) []*models.Submission {
	valid := make([]*models.Submission, 0, len(subs))
	for _, sub := range subs {
		if err := sub.Validate(); err != nil {
			log.Warn().Str("submission_id", sub.ID).Msg("Skipping malformed submission record")
			continue
		}
		valid = append(valid, sub)
	}
	return valid
}

// UserSubmissions returns the offline-first profile view from the local
// cache together with the user's total vote count. An empty userID yields
// an empty view rather than an error: signed-out profiles are simply blank.
func (s *SubmissionService) UserSubmissions(ctx context.Context, userID string) ([]*models.CachedSubmission, int, error) {
	if userID == "" {
		return nil, 0, nil
	}
	subs, err := s.cache.ByUser(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.cache.TotalVotes(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	return subs, total, nil
}
