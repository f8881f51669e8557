package services

import (
	"context"
	"errors"
	"sort"
	"sync"

	"photoduel-backend/internal/models"
)

var errUnavailable = errors.New("store unavailable")

type fakeCache struct {
	mu         sync.Mutex
	rows       map[string]*models.CachedSubmission
	failInsert bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{rows: make(map[string]*models.CachedSubmission)}
}

func (c *fakeCache) Insert(_ context.Context, sub *models.Submission, state models.SyncState) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failInsert {
		return errUnavailable
	}
	cp := *sub
	c.rows[sub.ID] = &models.CachedSubmission{Submission: cp, SyncState: state}
	return nil
}

func (c *fakeCache) SetSyncState(_ context.Context, id string, state models.SyncState) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	row, ok := c.rows[id]
	if !ok {
		return errors.New("not cached")
	}
	row.SyncState = state
	return nil
}

func (c *fakeCache) ByID(_ context.Context, id string) (*models.CachedSubmission, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	row, ok := c.rows[id]
	if !ok {
		return nil, errors.New("not cached")
	}
	cp := *row
	return &cp, nil
}

func (c *fakeCache) ByUser(_ context.Context, userID string) ([]*models.CachedSubmission, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var subs []*models.CachedSubmission
	for _, row := range c.rows {
		if row.UserID == userID {
			cp := *row
			subs = append(subs, &cp)
		}
	}
	sort.Slice(subs, func(i, j int) bool {
		if subs[i].Timestamp != subs[j].Timestamp {
			return subs[i].Timestamp > subs[j].Timestamp
		}
		return subs[i].ID < subs[j].ID
	})
	return subs, nil
}

func (c *fakeCache) TotalVotes(_ context.Context, userID string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0
	for _, row := range c.rows {
		if row.UserID == userID {
			total += row.Votes
		}
	}
	return total, nil
}

func (c *fakeCache) SetVotes(_ context.Context, id string, votes int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if row, ok := c.rows[id]; ok {
		row.Votes = votes
	}
	return nil
}

func (c *fakeCache) state(id string) models.SyncState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if row, ok := c.rows[id]; ok {
		return row.SyncState
	}
	return ""
}

func (c *fakeCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.rows)
}

type fakeRemote struct {
	mu         sync.Mutex
	rows       map[string]*models.Submission
	failCreate bool
	voteErr    error
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{rows: make(map[string]*models.Submission)}
}

func (r *fakeRemote) Create(_ context.Context, sub *models.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCreate {
		return errUnavailable
	}
	cp := *sub
	r.rows[sub.ID] = &cp
	return nil
}

func (r *fakeRemote) GetByID(_ context.Context, id string) (*models.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, errors.New("not found")
	}
	cp := *row
	return &cp, nil
}

func (r *fakeRemote) ListAll(_ context.Context) ([]*models.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	subs := r.copyRows(func(*models.Submission) bool { return true })
	sort.Slice(subs, func(i, j int) bool {
		if subs[i].Votes != subs[j].Votes {
			return subs[i].Votes > subs[j].Votes
		}
		return subs[i].ID < subs[j].ID
	})
	return subs, nil
}

func (r *fakeRemote) ListByUser(_ context.Context, userID string) ([]*models.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	subs := r.copyRows(func(s *models.Submission) bool { return s.UserID == userID })
	sort.Slice(subs, func(i, j int) bool {
		if subs[i].Timestamp != subs[j].Timestamp {
			return subs[i].Timestamp > subs[j].Timestamp
		}
		return subs[i].ID < subs[j].ID
	})
	return subs, nil
}

func (r *fakeRemote) copyRows(keep func(*models.Submission) bool) []*models.Submission {
	var subs []*models.Submission
	for _, row := range r.rows {
		if keep(row) {
			cp := *row
			subs = append(subs, &cp)
		}
	}
	return subs
}

// ApplyVote mirrors the real store's transactional counter: the
// read-modify-write is atomic with respect to concurrent callers.
func (r *fakeRemote) ApplyVote(_ context.Context, id string, delta int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.voteErr != nil {
		return 0, r.voteErr
	}
	row, ok := r.rows[id]
	if !ok {
		return 0, errors.New("not found")
	}
	row.Votes += delta
	return row.Votes, nil
}

func (r *fakeRemote) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []string
}

func (n *fakeNotifier) VoteReceived(_ context.Context, sub *models.Submission, _ int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, sub.ID)
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}
