package services

import (
	"context"

	"photoduel-backend/internal/models"

	"github.com/rs/zerolog/log"
)

// Direction is a vote direction.
type Direction string

const (
	VoteUp   Direction = "up"
	VoteDown Direction = "down"
)

// VoteNotifier pushes a notification to a submission's owner when their
// photo receives a vote.
type VoteNotifier interface {
	VoteReceived(ctx context.Context, sub *models.Submission, votes int)
}

// VoteService applies votes through the remote store's transactional
// counter update.
type VoteService struct {
	remote   RemoteStore
	cache    CacheStore
	stream   ChangeStream
	notifier VoteNotifier // optional
}

// NewVoteService creates a new vote service. notifier may be nil.
func NewVoteService(remote RemoteStore, cache CacheStore, stream ChangeStream, notifier VoteNotifier) *VoteService {
	return &VoteService{
		remote:   remote,
		cache:    cache,
		stream:   stream,
		notifier: notifier,
	}
}

// Apply atomically adjusts a submission's vote count and returns the new
// count. Concurrent votes on the same submission never lose an update. On
// failure nothing is mutated and the caller rolls back any optimistic
// count. No floor applies: a count may go negative.
func (v *VoteService) Apply(ctx context.Context, submissionID string, direction Direction) (int, error) {
	var delta int
	switch direction {
	case VoteUp:
		delta = 1
	case VoteDown:
		delta = -1
	default:
		return 0, ErrBadDirection
	}

	votes, err := v.remote.ApplyVote(ctx, submissionID, delta)
	if err != nil {
		return 0, err
	}

	// The owner's local mirror lags until refreshed; missing rows are fine,
	// the cache only holds the voter's own submissions.
	if err := v.cache.SetVotes(ctx, submissionID, votes); err != nil {
		log.Warn().Err(err).Str("submission_id", submissionID).Msg("Failed to refresh cached vote count")
	}

	if err := v.stream.Publish(ctx, Change{Kind: ChangeVoted, SubmissionID: submissionID}); err != nil {
		log.Error().Err(err).Str("submission_id", submissionID).Msg("Failed to publish change")
	}

	if v.notifier != nil && direction == VoteUp {
		if sub, err := v.remote.GetByID(ctx, submissionID); err == nil {
			go v.notifier.VoteReceived(context.WithoutCancel(ctx), sub, votes)
		}
	}

	log.Info().
		Str("submission_id", submissionID).
		Str("direction", string(direction)).
		Int("votes", votes).
		Msg("Vote applied")

	return votes, nil
}
