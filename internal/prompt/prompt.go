// Package prompt selects the daily photo challenge. Selection is a pure
// function of the calendar date so every user, process and restart agrees
// on the same prompt for a given day.
package prompt

import (
	"errors"
	"hash/fnv"
	"time"
)

// ErrNoPrompts is returned when selection is attempted over an empty set.
var ErrNoPrompts = errors.New("prompt set is empty")

// DefaultPrompts is the built-in challenge set, used when the config does
// not override it.
var DefaultPrompts = []string{
	"Something Blue",
	"Morning Light",
	"Reflections",
	"Hidden Corners",
	"Shadows at Noon",
	"Street Symmetry",
	"Something Old",
	"Looking Up",
	"Texture Close-Up",
	"Golden Hour",
	"A Stranger's Story",
	"Water in Motion",
	"Unexpected Color",
	"Rule of Thirds",
	"Night Lights",
}

// Select returns the prompt for the given date. The date is canonicalized
// to its UTC calendar day, hashed, and used to index the prompt set, so the
// result is stable across processes and restarts.
func Select(date time.Time, prompts []string) (string, error) {
	if len(prompts) == 0 {
		return "", ErrNoPrompts
	}
	day := date.UTC().Format("2006-01-02")
	h := fnv.New64a()
	h.Write([]byte(day))
	idx := h.Sum64() % uint64(len(prompts))
	return prompts[idx], nil
}

// Today returns the prompt for the current day.
func Today(prompts []string) (string, error) {
	return Select(time.Now(), prompts)
}
