package handlers

import "net/http"

// Set groups the API handlers for route registration.
type Set struct {
	Auth        *AuthHandler
	Workspaces  *WorkspaceHandler
	Chats       *ChatHandler
	Messages    *MessageHandler
	Invitations *InvitationHandler
	// Presence is nil when presence tracking is off.
	Presence *PresenceHandler
}

// Register mounts the /api/v1 routes on mux. auth wraps every route that
// needs a signed-in user.
func Register(mux *http.ServeMux, h Set, auth func(http.Handler) http.Handler) {
	protected := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, auth(fn))
	}

	// Public
	mux.HandleFunc("POST /api/v1/auth/register", h.Auth.Register)
	mux.HandleFunc("POST /api/v1/auth/login", h.Auth.Login)
	mux.HandleFunc("GET /api/v1/invitations/{id}/workspace", h.Invitations.Workspace)

	protected("GET /api/v1/auth/me", h.Auth.Me)

	// Workspaces
	protected("POST /api/v1/workspaces", h.Workspaces.Create)
	protected("GET /api/v1/workspaces", h.Workspaces.List)
	protected("GET /api/v1/workspaces/{id}", h.Workspaces.Get)
	protected("PATCH /api/v1/workspaces/{id}", h.Workspaces.Update)
	protected("GET /api/v1/workspaces/{id}/chats", h.Workspaces.ListChats)
	protected("GET /api/v1/workspaces/{id}/invitations", h.Workspaces.ListInvitations)
	protected("POST /api/v1/workspaces/join/{inviteId}", h.Workspaces.Join)
	protected("DELETE /api/v1/workspaces/{id}/leave", h.Workspaces.Leave)
	protected("DELETE /api/v1/workspaces/{id}/members/{uid}", h.Workspaces.RemoveMember)
	protected("PATCH /api/v1/workspaces/{id}/members/{uid}/role", h.Workspaces.ChangeRole)

	// Chats
	protected("POST /api/v1/chats", h.Chats.Create)
	protected("POST /api/v1/chats/dm", h.Chats.CreateDM)
	protected("GET /api/v1/chats/{id}", h.Chats.Get)
	protected("PATCH /api/v1/chats/{id}", h.Chats.Update)
	protected("DELETE /api/v1/chats/{id}", h.Chats.Delete)
	protected("GET /api/v1/chats/{id}/messages", h.Messages.List)
	protected("GET /api/v1/messages/{id}", h.Messages.Get)
	protected("POST /api/v1/chats/{id}/members", h.Chats.AddMembers)
	protected("DELETE /api/v1/chats/{id}/members/{uid}", h.Chats.RemoveMember)

	// Invitations
	protected("POST /api/v1/invitations", h.Invitations.Create)
	protected("GET /api/v1/invitations/{id}", h.Invitations.Get)
	protected("PATCH /api/v1/invitations/{id}", h.Invitations.Update)
	protected("DELETE /api/v1/invitations/{id}", h.Invitations.Delete)

	if h.Presence != nil {
		protected("GET /api/v1/users/{id}/presence", h.Presence.Get)
	}
}
