package handlers

import (
	"net/http"

	"github.com/vedran77/teamchat/internal/domain"
	"github.com/vedran77/teamchat/internal/service"
	"github.com/vedran77/teamchat/internal/transport/http/middleware"
	"github.com/vedran77/teamchat/pkg/validator"
	"go.uber.org/zap"
)

type ChatHandler struct {
	chatService *service.ChatService
	log         *zap.Logger
}

func NewChatHandler(chatService *service.ChatService, log *zap.Logger) *ChatHandler {
	return &ChatHandler{chatService: chatService, log: log.Named("chats")}
}

type createChatRequest struct {
	WorkspaceID string `json:"workspaceId"`
	Name        string `json:"name"`
	Visibility  string `json:"visibility"`
	ChatType    string `json:"chatType"`
}

type updateChatRequest struct {
	Name       *string `json:"name"`
	Visibility *string `json:"visibility"`
}

type createDMRequest struct {
	WorkspaceID string `json:"workspaceId"`
	UserID      string `json:"userId"`
}

type addMembersRequest struct {
	Members []string `json:"members"`
}

func (h *ChatHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req createChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if errs := validator.ValidateCreateChat(req.WorkspaceID, req.Name, req.Visibility, req.ChatType); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	chat, err := h.chatService.Create(r.Context(), userID, service.CreateChatInput{
		WorkspaceID: parseIDs([]string{req.WorkspaceID})[0],
		Name:        req.Name,
		Visibility:  domain.Visibility(req.Visibility),
		ChatType:    domain.ChatType(req.ChatType),
	})
	if err != nil {
		writeServiceError(w, h.log, "create chat", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"chat": chat})
}

// CreateDM returns 201 when the dm was created and 200 when it already existed.
func (h *ChatHandler) CreateDM(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req createDMRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if errs := validator.ValidateCreateDM(req.WorkspaceID, req.UserID); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	ids := parseIDs([]string{req.WorkspaceID, req.UserID})
	chat, created, err := h.chatService.CreateDM(r.Context(), userID, ids[0], ids[1])
	if err != nil {
		writeServiceError(w, h.log, "create dm", err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]any{"chat": chat})
}

func (h *ChatHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	chatID, ok := pathID(w, r, "id", "chat")
	if !ok {
		return
	}

	chat, err := h.chatService.Get(r.Context(), userID, chatID)
	if err != nil {
		writeServiceError(w, h.log, "get chat", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"chat": chat})
}

func (h *ChatHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	chatID, ok := pathID(w, r, "id", "chat")
	if !ok {
		return
	}

	var req updateChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if errs := validator.ValidateUpdateChat(req.Name, req.Visibility); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	input := service.UpdateChatInput{Name: req.Name}
	if req.Visibility != nil {
		v := domain.Visibility(*req.Visibility)
		input.Visibility = &v
	}

	chat, err := h.chatService.Update(r.Context(), userID, chatID, input)
	if err != nil {
		writeServiceError(w, h.log, "update chat", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"chat": chat})
}

func (h *ChatHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	chatID, ok := pathID(w, r, "id", "chat")
	if !ok {
		return
	}

	if err := h.chatService.Delete(r.Context(), userID, chatID); err != nil {
		writeServiceError(w, h.log, "delete chat", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ChatHandler) AddMembers(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	chatID, ok := pathID(w, r, "id", "chat")
	if !ok {
		return
	}

	var req addMembersRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if errs := validator.ValidateMembers(req.Members); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	chat, err := h.chatService.AddMembers(r.Context(), userID, chatID, parseIDs(req.Members))
	if err != nil {
		writeServiceError(w, h.log, "add chat members", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"chat": chat})
}

func (h *ChatHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	chatID, ok := pathID(w, r, "id", "chat")
	if !ok {
		return
	}
	targetID, ok := pathID(w, r, "uid", "user")
	if !ok {
		return
	}

	chat, err := h.chatService.RemoveMember(r.Context(), userID, chatID, targetID)
	if err != nil {
		writeServiceError(w, h.log, "remove chat member", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"chat": chat})
}
