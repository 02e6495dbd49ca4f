package handlers

import (
	"net/http"
	"time"

	"github.com/vedran77/teamchat/internal/domain"
	"github.com/vedran77/teamchat/internal/service"
	"github.com/vedran77/teamchat/internal/transport/http/middleware"
	"github.com/vedran77/teamchat/pkg/validator"
	"go.uber.org/zap"
)

type InvitationHandler struct {
	invitationService *service.InvitationService
	log               *zap.Logger
}

func NewInvitationHandler(invitationService *service.InvitationService, log *zap.Logger) *InvitationHandler {
	return &InvitationHandler{invitationService: invitationService, log: log.Named("invitations")}
}

type invitationRequest struct {
	WorkspaceID string     `json:"workspaceId"`
	InviteType  string     `json:"inviteType"`
	ExpiresAt   *time.Time `json:"expiresAt"`
	Invitees    []string   `json:"invitees"`
}

func (req invitationRequest) input() service.InvitationInput {
	return service.InvitationInput{
		InviteType: domain.InviteType(req.InviteType),
		ExpiresAt:  req.ExpiresAt,
		Invitees:   req.Invitees,
	}
}

func (h *InvitationHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req invitationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if errs := validator.ValidateInvitation(req.WorkspaceID, req.InviteType, req.ExpiresAt, req.Invitees, time.Now()); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	input := req.input()
	input.WorkspaceID = parseIDs([]string{req.WorkspaceID})[0]
	inv, err := h.invitationService.Create(r.Context(), userID, input)
	if err != nil {
		writeServiceError(w, h.log, "create invitation", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"invitation": inv})
}

func (h *InvitationHandler) Get(w http.ResponseWriter, r *http.Request) {
	invitationID, ok := pathID(w, r, "id", "invitation")
	if !ok {
		return
	}

	inv, err := h.invitationService.Get(r.Context(), invitationID)
	if err != nil {
		writeServiceError(w, h.log, "get invitation", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"invitation": inv})
}

// Workspace is public so the join page can show where a link leads.
func (h *InvitationHandler) Workspace(w http.ResponseWriter, r *http.Request) {
	invitationID, ok := pathID(w, r, "id", "invitation")
	if !ok {
		return
	}

	ws, err := h.invitationService.Workspace(r.Context(), invitationID)
	if err != nil {
		writeServiceError(w, h.log, "get invitation workspace", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"workspace": ws})
}

func (h *InvitationHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	invitationID, ok := pathID(w, r, "id", "invitation")
	if !ok {
		return
	}

	var req invitationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if errs := validator.ValidateInvitationUpdate(req.InviteType, req.ExpiresAt, req.Invitees, time.Now()); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	inv, err := h.invitationService.Update(r.Context(), userID, invitationID, req.input())
	if err != nil {
		writeServiceError(w, h.log, "update invitation", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"invitation": inv})
}

func (h *InvitationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	invitationID, ok := pathID(w, r, "id", "invitation")
	if !ok {
		return
	}

	if err := h.invitationService.Delete(r.Context(), userID, invitationID); err != nil {
		writeServiceError(w, h.log, "delete invitation", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
