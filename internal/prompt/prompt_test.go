package prompt

import (
	"errors"
	"testing"
	"time"
)

// TestSelectIsDeterministic ensures the same date always maps to the same prompt.
func TestSelectIsDeterministic(t *testing.T) {
	date := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	first, err := Select(date, DefaultPrompts)
	if err != nil {
		t.Fatalf("Select returned error: %v", err)
	}
	for i := 0; i < 100; i++ {
		got, err := Select(date, DefaultPrompts)
		if err != nil {
			t.Fatalf("Select returned error: %v", err)
		}
		if got != first {
			t.Fatalf("Select not deterministic: got %q, want %q", got, first)
		}
	}
}

// TestSelectIgnoresTimeOfDay ensures every instant of a calendar day maps to
// the same prompt.
func TestSelectIgnoresTimeOfDay(t *testing.T) {
	morning := time.Date(2026, 7, 1, 0, 0, 1, 0, time.UTC)
	evening := time.Date(2026, 7, 1, 23, 59, 59, 0, time.UTC)

	a, err := Select(morning, DefaultPrompts)
	if err != nil {
		t.Fatalf("Select returned error: %v", err)
	}
	b, err := Select(evening, DefaultPrompts)
	if err != nil {
		t.Fatalf("Select returned error: %v", err)
	}
	if a != b {
		t.Fatalf("same day produced different prompts: %q vs %q", a, b)
	}
}

// TestSelectSpreadsOverDays ensures a month of consecutive days is not stuck
// on a handful of prompts.
func TestSelectSpreadsOverDays(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	seen := make(map[string]int)
	for i := 0; i < 30; i++ {
		got, err := Select(start.AddDate(0, 0, i), DefaultPrompts)
		if err != nil {
			t.Fatalf("Select returned error: %v", err)
		}
		seen[got]++
	}
	if len(seen) < 5 {
		t.Fatalf("30 days mapped to only %d distinct prompts: %v", len(seen), seen)
	}
	for p, n := range seen {
		if n > 15 {
			t.Fatalf("prompt %q selected %d of 30 days, distribution is degenerate", p, n)
		}
	}
}

// TestSelectRejectsEmptySet ensures an empty prompt set fails fast.
func TestSelectRejectsEmptySet(t *testing.T) {
	_, err := Select(time.Now(), nil)
	if !errors.Is(err, ErrNoPrompts) {
		t.Fatalf("Select error = %v, want %v", err, ErrNoPrompts)
	}
}
