package handlers

import (
	"net/http"

	"github.com/vedran77/teamchat/internal/domain"
	"github.com/vedran77/teamchat/internal/service"
	"github.com/vedran77/teamchat/internal/transport/http/middleware"
	"github.com/vedran77/teamchat/pkg/validator"
	"go.uber.org/zap"
)

type WorkspaceHandler struct {
	workspaceService  *service.WorkspaceService
	chatService       *service.ChatService
	invitationService *service.InvitationService
	log               *zap.Logger
}

func NewWorkspaceHandler(
	workspaceService *service.WorkspaceService,
	chatService *service.ChatService,
	invitationService *service.InvitationService,
	log *zap.Logger,
) *WorkspaceHandler {
	return &WorkspaceHandler{
		workspaceService:  workspaceService,
		chatService:       chatService,
		invitationService: invitationService,
		log:               log.Named("workspaces"),
	}
}

func (h *WorkspaceHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var input service.CreateWorkspaceInput
	if !decodeJSON(w, r, &input) {
		return
	}

	if errs := validator.ValidateWorkspace(input.Name); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	ws, err := h.workspaceService.Create(r.Context(), userID, input)
	if err != nil {
		writeServiceError(w, h.log, "create workspace", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"workspace": ws})
}

func (h *WorkspaceHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	workspaces, err := h.workspaceService.ListByUser(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.log, "list workspaces", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"workspaces": workspaces})
}

func (h *WorkspaceHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	workspaceID, ok := pathID(w, r, "id", "workspace")
	if !ok {
		return
	}

	ws, err := h.workspaceService.Get(r.Context(), userID, workspaceID)
	if err != nil {
		writeServiceError(w, h.log, "get workspace", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"workspace": ws})
}

func (h *WorkspaceHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	workspaceID, ok := pathID(w, r, "id", "workspace")
	if !ok {
		return
	}

	var input service.UpdateWorkspaceInput
	if !decodeJSON(w, r, &input) {
		return
	}

	if errs := validator.ValidateWorkspace(input.Name); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	ws, err := h.workspaceService.Rename(r.Context(), userID, workspaceID, input)
	if err != nil {
		writeServiceError(w, h.log, "update workspace", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"workspace": ws})
}

// ListChats returns the public chats of the workspace plus the private chats
// the caller belongs to.
func (h *WorkspaceHandler) ListChats(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	workspaceID, ok := pathID(w, r, "id", "workspace")
	if !ok {
		return
	}

	chats, err := h.chatService.ListByWorkspace(r.Context(), userID, workspaceID)
	if err != nil {
		writeServiceError(w, h.log, "list workspace chats", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"chats": chats})
}

func (h *WorkspaceHandler) ListInvitations(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	workspaceID, ok := pathID(w, r, "id", "workspace")
	if !ok {
		return
	}

	invitations, err := h.invitationService.ListByWorkspace(r.Context(), userID, workspaceID)
	if err != nil {
		writeServiceError(w, h.log, "list invitations", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"invitations": invitations})
}

func (h *WorkspaceHandler) Join(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	invitationID, ok := pathID(w, r, "inviteId", "invitation")
	if !ok {
		return
	}

	ws, err := h.workspaceService.Join(r.Context(), userID, invitationID)
	if err != nil {
		writeServiceError(w, h.log, "join workspace", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"workspace": ws})
}

func (h *WorkspaceHandler) Leave(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	workspaceID, ok := pathID(w, r, "id", "workspace")
	if !ok {
		return
	}

	if err := h.workspaceService.Leave(r.Context(), userID, workspaceID); err != nil {
		writeServiceError(w, h.log, "leave workspace", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *WorkspaceHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	workspaceID, ok := pathID(w, r, "id", "workspace")
	if !ok {
		return
	}
	targetID, ok := pathID(w, r, "uid", "user")
	if !ok {
		return
	}

	ws, err := h.workspaceService.RemoveMember(r.Context(), userID, workspaceID, targetID)
	if err != nil {
		writeServiceError(w, h.log, "remove workspace member", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"workspace": ws})
}

func (h *WorkspaceHandler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	workspaceID, ok := pathID(w, r, "id", "workspace")
	if !ok {
		return
	}
	targetID, ok := pathID(w, r, "uid", "user")
	if !ok {
		return
	}

	var input struct {
		Role string `json:"role"`
	}
	if !decodeJSON(w, r, &input) {
		return
	}

	if errs := validator.ValidateRole(input.Role); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	ws, err := h.workspaceService.ChangeRole(r.Context(), userID, workspaceID, targetID, service.ChangeRoleInput{
		Role: domain.WorkspaceRole(input.Role),
	})
	if err != nil {
		writeServiceError(w, h.log, "change member role", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"workspace": ws})
}
