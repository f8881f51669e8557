package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"photoduel-backend/internal/middleware"
	"photoduel-backend/internal/models"
	"photoduel-backend/internal/prompt"
	"photoduel-backend/internal/repository"
	"photoduel-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// SubmissionHandler handles submission and voting HTTP requests
type SubmissionHandler struct {
	submissions *services.SubmissionService
	votes       *services.VoteService
	prompts     []string
}

// NewSubmissionHandler creates a new submission handler
func NewSubmissionHandler(submissions *services.SubmissionService, votes *services.VoteService, prompts []string) *SubmissionHandler {
	return &SubmissionHandler{
		submissions: submissions,
		votes:       votes,
		prompts:     prompts,
	}
}

// GetPrompt handles GET /api/v1/prompt
func (h *SubmissionHandler) GetPrompt(w http.ResponseWriter, r *http.Request) {
	p, err := prompt.Today(h.prompts)
	if err != nil {
		log.Error().Err(err).Msg("Failed to select daily prompt")
		respondError(w, "No prompts configured", http.StatusInternalServerError)
		return
	}
	respondJSON(w, map[string]string{"prompt": p}, http.StatusOK)
}

type submitRequest struct {
	Image     string   `json:"image"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

type submitResponse struct {
	Submission *models.Submission `json:"submission"`
	SyncState  models.SyncState   `json:"sync_state"`
}

// Submit handles POST /api/v1/submissions
func (h *SubmissionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	sub, _, err := h.submissions.Submit(ctx, services.SubmitRequest{
		Image:     req.Image,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		UserID:    userID,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyImage),
			errors.Is(err, services.ErrPartialLocation),
			errors.Is(err, services.ErrNoIdentity):
			respondError(w, err.Error(), http.StatusBadRequest)
		default:
			log.Error().Err(err).Str("user_id", userID).Msg("Failed to create submission")
			respondError(w, "Failed to create submission", http.StatusInternalServerError)
		}
		return
	}

	// The remote write is still in flight; the client polls the profile
	// view or resyncs explicitly if it lands in the failed state.
	respondJSON(w, submitResponse{Submission: sub, SyncState: models.SyncPending}, http.StatusAccepted)
}

// VotingList handles GET /api/v1/submissions
func (h *SubmissionHandler) VotingList(w http.ResponseWriter, r *http.Request) {
	subs, err := h.submissions.VotingList(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list submissions")
		respondError(w, "Failed to list submissions", http.StatusInternalServerError)
		return
	}
	respondJSON(w, map[string]any{"submissions": subs}, http.StatusOK)
}

// MySubmissions handles GET /api/v1/submissions/mine
func (h *SubmissionHandler) MySubmissions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	subs, totalVotes, err := h.submissions.UserSubmissions(ctx, userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to read cached submissions")
		respondError(w, "Failed to read submissions", http.StatusInternalServerError)
		return
	}

	respondJSON(w, map[string]any{
		"submissions": subs,
		"total_votes": totalVotes,
	}, http.StatusOK)
}

type voteRequest struct {
	Direction services.Direction `json:"direction"`
}

// Vote handles POST /api/v1/submissions/{submission_id}/vote
func (h *SubmissionHandler) Vote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	submissionID := chi.URLParam(r, "submission_id")

	var req voteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	votes, err := h.votes.Apply(ctx, submissionID, req.Direction)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrBadDirection):
			respondError(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, repository.ErrNotFound):
			respondError(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, repository.ErrVoteConflict):
			respondError(w, err.Error(), http.StatusConflict)
		default:
			log.Error().Err(err).Str("submission_id", submissionID).Msg("Failed to apply vote")
			respondError(w, "Failed to apply vote", http.StatusInternalServerError)
		}
		return
	}

	respondJSON(w, map[string]int{"votes": votes}, http.StatusOK)
}

// Resync handles POST /api/v1/submissions/{submission_id}/sync
func (h *SubmissionHandler) Resync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	submissionID := chi.URLParam(r, "submission_id")

	if err := h.submissions.Resync(ctx, submissionID, userID); err != nil {
		switch {
		case errors.Is(err, services.ErrNotOwner):
			respondError(w, err.Error(), http.StatusForbidden)
		case errors.Is(err, services.ErrAlreadySynced):
			respondError(w, err.Error(), http.StatusConflict)
		default:
			log.Error().Err(err).Str("submission_id", submissionID).Msg("Failed to resync submission")
			respondError(w, "Failed to resync submission", http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
