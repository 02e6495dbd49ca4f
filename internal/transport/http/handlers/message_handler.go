package handlers

import (
	"net/http"

	"github.com/vedran77/teamchat/internal/service"
	"github.com/vedran77/teamchat/internal/transport/http/middleware"
	"go.uber.org/zap"
)

// MessageHandler serves message history and single messages. Sending,
// editing and deleting go through the realtime gateway.
type MessageHandler struct {
	messageService *service.MessageService
	log            *zap.Logger
}

func NewMessageHandler(messageService *service.MessageService, log *zap.Logger) *MessageHandler {
	return &MessageHandler{messageService: messageService, log: log.Named("messages")}
}

func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	chatID, ok := pathID(w, r, "id", "chat")
	if !ok {
		return
	}

	messages, err := h.messageService.List(r.Context(), userID, chatID)
	if err != nil {
		writeServiceError(w, h.log, "list messages", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func (h *MessageHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	messageID, ok := pathID(w, r, "id", "message")
	if !ok {
		return
	}

	msg, err := h.messageService.Get(r.Context(), userID, messageID)
	if err != nil {
		writeServiceError(w, h.log, "get message", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"message": msg})
}
