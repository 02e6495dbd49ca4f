package handlers

import (
	"context"
	"net/http"

	"github.com/vedran77/teamchat/internal/presence"
	"go.uber.org/zap"
)

// StatusReader looks up a user's last recorded presence.
type StatusReader interface {
	Get(ctx context.Context, userID string) (presence.Status, error)
}

type PresenceHandler struct {
	presence StatusReader
	log      *zap.Logger
}

func NewPresenceHandler(presence StatusReader, log *zap.Logger) *PresenceHandler {
	return &PresenceHandler{presence: presence, log: log.Named("presence")}
}

func (h *PresenceHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "id", "user")
	if !ok {
		return
	}

	status, err := h.presence.Get(r.Context(), userID.String())
	if err != nil {
		writeServiceError(w, h.log, "get presence", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"userId": userID, "presence": status})
}
