package services

import (
	"context"
	"testing"
	"time"

	"photoduel-backend/internal/models"
)

func receiveSnapshot(t *testing.T, sub *Subscription) []*models.Submission {
	t.Helper()
	select {
	case snap, ok := <-sub.Updates():
		if !ok {
			t.Fatal("updates channel closed unexpectedly")
		}
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

func ids(subs []*models.Submission) []string {
	out := make([]string, len(subs))
	for i, s := range subs {
		out[i] = s.ID
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// TestSubscribeVotingOrder ensures the shared feed is ordered by votes
// descending with id tie-breaks.
func TestSubscribeVotingOrder(t *testing.T) {
	svc, _, remote, stream := newTestService()
	ctx := context.Background()

	for _, s := range []*models.Submission{
		{ID: "b", Image: "x", Timestamp: 1, UserID: "u1", Votes: 3},
		{ID: "a", Image: "x", Timestamp: 2, UserID: "u2", Votes: 3},
		{ID: "c", Image: "x", Timestamp: 3, UserID: "u1", Votes: 7},
	} {
		if err := remote.Create(ctx, s); err != nil {
			t.Fatalf("Create returned error: %v", err)
		}
	}

	sub, err := svc.Subscribe(ctx, FeedFilter{})
	if err != nil {
		t.Fatalf("Subscribe returned error: %v", err)
	}
	defer sub.Cancel()

	snap := receiveSnapshot(t, sub)
	if got, want := ids(snap), []string{"c", "a", "b"}; !equal(got, want) {
		t.Fatalf("unexpected order: got %v, want %v", got, want)
	}

	// A vote reorders the feed on the next snapshot.
	if _, err := remote.ApplyVote(ctx, "b", 5); err != nil {
		t.Fatalf("ApplyVote returned error: %v", err)
	}
	if err := stream.Publish(ctx, Change{Kind: ChangeVoted, SubmissionID: "b"}); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}

	snap = receiveSnapshot(t, sub)
	if got, want := ids(snap), []string{"b", "c", "a"}; !equal(got, want) {
		t.Fatalf("unexpected order after vote: got %v, want %v", got, want)
	}
}

// TestSubscribeByUserOrder ensures the profile feed is newest-first for the
// requested user only.
func TestSubscribeByUserOrder(t *testing.T) {
	svc, _, remote, stream := newTestService()
	ctx := context.Background()

	sub, err := svc.Subscribe(ctx, FeedFilter{UserID: "u1"})
	if err != nil {
		t.Fatalf("Subscribe returned error: %v", err)
	}
	defer sub.Cancel()

	if snap := receiveSnapshot(t, sub); len(snap) != 0 {
		t.Fatalf("expected empty initial snapshot, got %v", ids(snap))
	}

	for _, s := range []*models.Submission{
		{ID: "t1", Image: "x", Timestamp: 100, UserID: "u1"},
		{ID: "t2", Image: "x", Timestamp: 200, UserID: "u1"},
		{ID: "t3", Image: "x", Timestamp: 300, UserID: "u1"},
		{ID: "zz", Image: "x", Timestamp: 999, UserID: "u2"},
	} {
		if err := remote.Create(ctx, s); err != nil {
			t.Fatalf("Create returned error: %v", err)
		}
		if err := stream.Publish(ctx, Change{Kind: ChangeCreated, SubmissionID: s.ID, UserID: s.UserID}); err != nil {
			t.Fatalf("Publish returned error: %v", err)
		}
	}

	deadline := time.After(2 * time.Second)
	want := []string{"t3", "t2", "t1"}
	for {
		select {
		case snap := <-sub.Updates():
			if equal(ids(snap), want) {
				return
			}
		case <-deadline:
			t.Fatalf("never observed order %v", want)
		}
	}
}

// TestCancelStopsUpdates ensures no snapshots arrive after cancellation and
// that cancelling repeatedly is safe.
func TestCancelStopsUpdates(t *testing.T) {
	svc, _, remote, stream := newTestService()
	ctx := context.Background()

	sub, err := svc.Subscribe(ctx, FeedFilter{})
	if err != nil {
		t.Fatalf("Subscribe returned error: %v", err)
	}
	receiveSnapshot(t, sub)

	sub.Cancel()
	sub.Cancel() // idempotent

	// Drain whatever was in flight; the channel must close.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-sub.Updates():
			if !ok {
				goto closed
			}
		case <-deadline:
			t.Fatal("updates channel never closed after cancel")
		}
	}
closed:

	// A remote insert after cancellation reaches no one.
	if err := remote.Create(ctx, &models.Submission{ID: "late", Image: "x", Timestamp: 1, UserID: "u1"}); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if err := stream.Publish(ctx, Change{Kind: ChangeCreated, SubmissionID: "late"}); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	select {
	case snap, ok := <-sub.Updates():
		if ok {
			t.Fatalf("received snapshot after cancel: %v", ids(snap))
		}
	case <-time.After(100 * time.Millisecond):
	}
}

// TestContextCancellationEndsSubscription ensures a dying caller context
// releases the subscription.
func TestContextCancellationEndsSubscription(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx, cancel := context.WithCancel(context.Background())

	sub, err := svc.Subscribe(ctx, FeedFilter{})
	if err != nil {
		t.Fatalf("Subscribe returned error: %v", err)
	}
	receiveSnapshot(t, sub)

	cancel()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-sub.Updates():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("updates channel never closed after context cancellation")
		}
	}
}

// TestSlowSubscriberSeesLatestSnapshot ensures an unread snapshot is
// superseded rather than queued or blocking.
func TestSlowSubscriberSeesLatestSnapshot(t *testing.T) {
	svc, _, remote, stream := newTestService()
	ctx := context.Background()

	sub, err := svc.Subscribe(ctx, FeedFilter{})
	if err != nil {
		t.Fatalf("Subscribe returned error: %v", err)
	}
	defer sub.Cancel()
	receiveSnapshot(t, sub)

	// Publish a burst without reading; the subscriber must end up with a
	// snapshot containing everything.
	for i, id := range []string{"a", "b", "c", "d", "e"} {
		s := &models.Submission{ID: id, Image: "x", Timestamp: int64(i), UserID: "u1"}
		if err := remote.Create(ctx, s); err != nil {
			t.Fatalf("Create returned error: %v", err)
		}
		if err := stream.Publish(ctx, Change{Kind: ChangeCreated, SubmissionID: id}); err != nil {
			t.Fatalf("Publish returned error: %v", err)
		}
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap := <-sub.Updates():
			if len(snap) == 5 {
				return
			}
		case <-deadline:
			t.Fatal("never observed the full snapshot")
		}
	}
}
