package handlers

import (
	"net/http"

	"photoduel-backend/internal/middleware"
	"photoduel-backend/internal/models"
	"photoduel-backend/internal/services"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// FeedFrame is one pushed snapshot of the live feed.
type FeedFrame struct {
	Type        string               `json:"type"`
	Submissions []*models.Submission `json:"submissions"`
}

// WebSocketHandler streams live feed snapshots to connected clients
type WebSocketHandler struct {
	submissions *services.SubmissionService
	userService *services.UserService
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(submissions *services.SubmissionService, userService *services.UserService) *WebSocketHandler {
	return &WebSocketHandler{
		submissions: submissions,
		userService: userService,
	}
}

// HandleWebSocket handles GET /ws?token=...&feed=all|mine. Each remote
// change pushes the full reordered snapshot; closing the connection cancels
// the subscription.
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.ValidateWebSocketToken(r.URL.Query().Get("token"), h.userService)
	if err != nil {
		respondError(w, "invalid token", http.StatusUnauthorized)
		return
	}

	filter := services.FeedFilter{}
	if r.URL.Query().Get("feed") == "mine" {
		filter.UserID = userID
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}
	defer conn.Close()

	ctx := r.Context()
	sub, err := h.submissions.Subscribe(ctx, filter)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to open feed subscription")
		return
	}
	defer sub.Cancel()

	log.Info().
		Str("user_id", userID).
		Bool("own_feed", filter.UserID != "").
		Msg("Feed subscription opened")

	// Reads are only watched for the close; clients do not send frames.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				sub.Cancel()
				return
			}
		}
	}()

	for snapshot := range sub.Updates() {
		frame := FeedFrame{Type: "snapshot", Submissions: snapshot}
		if err := conn.WriteJSON(frame); err != nil {
			log.Debug().Err(err).Str("user_id", userID).Msg("Feed connection dropped")
			return
		}
	}
}
