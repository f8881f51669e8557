package services

import (
	"context"
	"sync"

	"photoduel-backend/internal/models"

	"github.com/rs/zerolog/log"
)

// FeedFilter selects which live view a subscription follows. A zero filter
// is the shared voting view (votes descending); setting UserID follows one
// user's submissions (timestamp descending).
type FeedFilter struct {
	UserID string
}

// Subscription is a live ordered view of the remote store. Every remote
// change triggers a full recomputation of the list, delivered on Updates.
// Only the latest snapshot is retained for a slow consumer; intermediate
// ones are superseded, never queued.
type Subscription struct {
	updates chan []*models.Submission
	done    chan struct{}
	stop    func()
	once    sync.Once
}

// Updates delivers reordered snapshots. The channel is closed after Cancel.
func (s *Subscription) Updates() <-chan []*models.Submission {
	return s.updates
}

// Cancel stops the subscription and releases its resources. It is
// idempotent and safe to call after the underlying stream is gone.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.stop()
		close(s.done)
	})
}

// Subscribe opens a live subscription over the remote store. An initial
// snapshot is delivered immediately, then one per remote change. The caller
// must Cancel the subscription when done.
func (s *SubmissionService) Subscribe(ctx context.Context, filter FeedFilter) (*Subscription, error) {
	events, stopStream, err := s.stream.Subscribe(ctx)
	if err != nil {
		return nil, err
	}

	sub := &Subscription{
		updates: make(chan []*models.Submission, 1),
		done:    make(chan struct{}),
		stop:    stopStream,
	}
	go s.feed(ctx, filter, events, sub)
	return sub, nil
}

func (s *SubmissionService) feed(ctx context.Context, filter FeedFilter, events <-chan Change, sub *Subscription) {
	defer close(sub.updates)

	s.deliver(ctx, filter, sub)
	for {
		select {
		case <-sub.done:
			return
		case <-ctx.Done():
			sub.Cancel()
			return
		case _, ok := <-events:
			if !ok {
				return
			}
			s.deliver(ctx, filter, sub)
		}
	}
}

// deliver recomputes the ordered snapshot and hands it to the subscriber,
// superseding any snapshot the subscriber has not consumed yet.
func (s *SubmissionService) deliver(ctx context.Context, filter FeedFilter, sub *Subscription) {
	snapshot, err := s.snapshot(ctx, filter)
	if err != nil {
		// The previous snapshot stays current; the next change retries.
		log.Error().Err(err).Msg("Failed to recompute feed snapshot")
		return
	}

	select {
	case <-sub.updates:
	default:
	}
	select {
	case sub.updates <- snapshot:
	case <-sub.done:
	}
}

func (s *SubmissionService) snapshot(ctx context.Context, filter FeedFilter) ([]*models.Submission, error) {
	var subs []*models.Submission
	var err error
	if filter.UserID != "" {
		subs, err = s.remote.ListByUser(ctx, filter.UserID)
	} else {
		subs, err = s.remote.ListAll(ctx)
	}
	if err != nil {
		return nil, err
	}
	return filterValid(subs), nil
}
