package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ChangeKind classifies a remote store mutation.
type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeVoted   ChangeKind = "voted"
	ChangeSynced  ChangeKind = "synced"
)

// Change is a remote store mutation event. Subscribers do not diff against
// it; any change triggers a full snapshot recomputation.
type Change struct {
	Kind         ChangeKind `json:"kind"`
	SubmissionID string     `json:"submission_id"`
	UserID       string     `json:"user_id,omitempty"`
}

// ChangeStream fans remote mutation events out to feed subscribers.
type ChangeStream interface {
	// Publish broadcasts a change to all current subscribers.
	Publish(ctx context.Context, change Change) error
	// Subscribe returns a channel of changes and a cancel function. Cancel
	// is idempotent; after it returns no further events are delivered.
	Subscribe(ctx context.Context) (<-chan Change, func(), error)
}

const streamBuffer = 256

// MemoryStream is an in-process ChangeStream, used when no Redis broker is
// configured and in tests. Slow subscribers have events dropped rather than
// blocking publishers; droppage only delays a snapshot until the next event.
type MemoryStream struct {
	mu   sync.Mutex
	subs map[int]chan Change
	next int
}

// NewMemoryStream creates an in-process change stream.
func NewMemoryStream() *MemoryStream {
	return &MemoryStream{subs: make(map[int]chan Change)}
}

// Publish broadcasts a change to all current subscribers.
func (s *MemoryStream) Publish(_ context.Context, change Change) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- change:
		default:
			log.Warn().Str("submission_id", change.SubmissionID).Msg("Subscriber lagging, change dropped")
		}
	}
	return nil
}

// Subscribe registers a new subscriber.
func (s *MemoryStream) Subscribe(_ context.Context) (<-chan Change, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.next
	s.next++
	ch := make(chan Change, streamBuffer)
	s.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
	return ch, cancel, nil
}

const redisChannel = "submissions"

// RedisStream is a Redis pub/sub ChangeStream, letting multiple service
// instances share one live feed.
type RedisStream struct {
	rdb *redis.Client
}

// NewRedisStream creates a Redis-backed change stream.
func NewRedisStream(rdb *redis.Client) *RedisStream {
	return &RedisStream{rdb: rdb}
}

// Publish broadcasts a change on the submissions channel.
func (s *RedisStream) Publish(ctx context.Context, change Change) error {
	data, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("failed to marshal change: %w", err)
	}
	if err := s.rdb.Publish(ctx, redisChannel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish change: %w", err)
	}
	return nil
}

// Subscribe registers on the submissions channel.
func (s *RedisStream) Subscribe(ctx context.Context) (<-chan Change, func(), error) {
	pubSub := s.rdb.Subscribe(ctx, redisChannel)
	if _, err := pubSub.Receive(ctx); err != nil {
		pubSub.Close()
		return nil, nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	out := make(chan Change, streamBuffer)
	messages := pubSub.Channel(redis.WithChannelSize(streamBuffer))
	go func() {
		defer close(out)
		for msg := range messages {
			var change Change
			if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
				log.Warn().Err(err).Msg("Skipping malformed change event")
				continue
			}
			select {
			case out <- change:
			default:
				log.Warn().Str("submission_id", change.SubmissionID).Msg("Subscriber lagging, change dropped")
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			if err := pubSub.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close change subscription")
			}
		})
	}
	return out, cancel, nil
}
