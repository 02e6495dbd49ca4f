// Package authz holds the permission rules for workspaces, chats and
// messages. Every function works on snapshots the caller has already loaded
// and never touches storage.
package authz

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/teamchat/internal/domain"
)

var (
	ErrNotWorkspaceMember = fmt.Errorf("%w: not a member of this workspace", domain.ErrForbidden)
	ErrNotWorkspaceOwner  = fmt.Errorf("%w: only the workspace owner can perform this action", domain.ErrForbidden)
	ErrNotWorkspaceAdmin  = fmt.Errorf("%w: only workspace owner or admin can perform this action", domain.ErrForbidden)
	ErrOwnerProtected     = fmt.Errorf("%w: the workspace owner cannot be changed or removed", domain.ErrForbidden)
	ErrOwnerCannotLeave   = fmt.Errorf("%w: the workspace owner cannot leave", domain.ErrForbidden)
	ErrNotChatMember      = fmt.Errorf("%w: not a member of this chat", domain.ErrForbidden)
	ErrNotChatAdmin       = fmt.Errorf("%w: only chat owner or admin can perform this action", domain.ErrForbidden)
	ErrDMImmutable        = fmt.Errorf("%w: direct message chats cannot be modified", domain.ErrForbidden)
	ErrOutsideWorkspace   = fmt.Errorf("%w: every member must belong to the workspace", domain.ErrForbidden)
	ErrNotMessageSender   = fmt.Errorf("%w: only the sender can modify this message", domain.ErrForbidden)
	ErrInvitationExpired  = fmt.Errorf("%w: invitation has expired", domain.ErrForbidden)
	ErrNotInvited         = fmt.Errorf("%w: you are not invited to this workspace", domain.ErrForbidden)
)

func IsWorkspaceMember(ws *domain.Workspace, userID uuid.UUID) bool {
	_, ok := ws.Member(userID)
	return ok
}

func IsWorkspaceOwner(ws *domain.Workspace, userID uuid.UUID) bool {
	role, ok := WorkspaceMemberRole(ws, userID)
	return ok && role == domain.WorkspaceRoleOwner
}

func WorkspaceMemberRole(ws *domain.Workspace, userID uuid.UUID) (domain.WorkspaceRole, bool) {
	m, ok := ws.Member(userID)
	if !ok {
		return "", false
	}
	return m.Role, true
}

func IsChatMember(chat *domain.Chat, userID uuid.UUID) bool {
	_, ok := chat.Member(userID)
	return ok
}

func ChatMemberRole(chat *domain.Chat, userID uuid.UUID) (domain.ChatRole, bool) {
	m, ok := chat.Member(userID)
	if !ok {
		return "", false
	}
	return m.Role, true
}

// IsChatAdminOrOwner reports whether the chat-scoped role of userID is owner
// or admin. Workspace roles play no part.
func IsChatAdminOrOwner(chat *domain.Chat, userID uuid.UUID) bool {
	role, ok := ChatMemberRole(chat, userID)
	return ok && (role == domain.ChatRoleOwner || role == domain.ChatRoleAdmin)
}

// --- Chats ---

func CanCreateChat(ws *domain.Workspace, caller uuid.UUID) error {
	if !IsWorkspaceMember(ws, caller) {
		return ErrNotWorkspaceMember
	}
	return nil
}

// CanCreateDM checks that both participants belong to the workspace. Reusing
// an existing dm for the pair is the caller's job.
func CanCreateDM(ws *domain.Workspace, caller, peer uuid.UUID) error {
	if !IsWorkspaceMember(ws, caller) {
		return ErrNotWorkspaceMember
	}
	if !IsWorkspaceMember(ws, peer) {
		return ErrOutsideWorkspace
	}
	return nil
}

// CanReadChat gates chat details, message history and room joins. Private
// chats need chat membership; public chats only workspace membership.
func CanReadChat(ws *domain.Workspace, chat *domain.Chat, caller uuid.UUID) error {
	if chat.IsPrivate() {
		if !IsChatMember(chat, caller) {
			return ErrNotChatMember
		}
		return nil
	}
	if ws == nil || !IsWorkspaceMember(ws, caller) {
		return ErrNotWorkspaceMember
	}
	return nil
}

// CanPostMessage applies the read rule to sending and room subscription.
func CanPostMessage(ws *domain.Workspace, chat *domain.Chat, caller uuid.UUID) error {
	return CanReadChat(ws, chat, caller)
}

func CanUpdateChat(chat *domain.Chat, caller uuid.UUID) error {
	if chat.IsDM() {
		return ErrDMImmutable
	}
	if !IsChatAdminOrOwner(chat, caller) {
		return ErrNotChatAdmin
	}
	return nil
}

func CanAddChatMembers(ws *domain.Workspace, chat *domain.Chat, caller uuid.UUID, proposed []uuid.UUID) error {
	if chat.IsDM() {
		return ErrDMImmutable
	}
	if chat.IsPrivate() && !IsChatAdminOrOwner(chat, caller) {
		return ErrNotChatAdmin
	}
	if !IsWorkspaceMember(ws, caller) {
		return ErrNotWorkspaceMember
	}
	for _, id := range proposed {
		if !IsWorkspaceMember(ws, id) {
			return ErrOutsideWorkspace
		}
	}
	return nil
}

func CanRemoveChatMember(chat *domain.Chat, caller, target uuid.UUID) error {
	if chat.IsDM() {
		return ErrDMImmutable
	}
	if caller == target {
		return nil
	}
	if !IsChatAdminOrOwner(chat, caller) {
		return ErrNotChatAdmin
	}
	return nil
}

func CanDeleteChat(chat *domain.Chat, caller uuid.UUID) error {
	if chat.IsDM() {
		return ErrDMImmutable
	}
	if !IsChatAdminOrOwner(chat, caller) {
		return ErrNotChatAdmin
	}
	return nil
}

// CanModifyMessage allows edits and deletes by the original sender only.
func CanModifyMessage(msg *domain.Message, caller uuid.UUID) error {
	if msg.SenderID != caller {
		return ErrNotMessageSender
	}
	return nil
}

// --- Workspaces ---

func CanViewWorkspace(ws *domain.Workspace, caller uuid.UUID) error {
	if !IsWorkspaceMember(ws, caller) {
		return ErrNotWorkspaceMember
	}
	return nil
}

// CanManageWorkspaceMembers lets owners and admins remove members. The owner
// is never a valid target.
func CanManageWorkspaceMembers(ws *domain.Workspace, caller, target uuid.UUID) error {
	role, ok := WorkspaceMemberRole(ws, caller)
	if !ok {
		return ErrNotWorkspaceMember
	}
	if role != domain.WorkspaceRoleOwner && role != domain.WorkspaceRoleAdmin {
		return ErrNotWorkspaceAdmin
	}
	if IsWorkspaceOwner(ws, target) {
		return ErrOwnerProtected
	}
	return nil
}

func CanChangeMemberRole(ws *domain.Workspace, caller, target uuid.UUID) error {
	if !IsWorkspaceOwner(ws, caller) {
		return ErrNotWorkspaceOwner
	}
	if IsWorkspaceOwner(ws, target) {
		return ErrOwnerProtected
	}
	return nil
}

func CanLeaveWorkspace(ws *domain.Workspace, caller uuid.UUID) error {
	if !IsWorkspaceMember(ws, caller) {
		return ErrNotWorkspaceMember
	}
	if IsWorkspaceOwner(ws, caller) {
		return ErrOwnerCannotLeave
	}
	return nil
}

func CanManageInvitations(ws *domain.Workspace, caller uuid.UUID) error {
	if !IsWorkspaceOwner(ws, caller) {
		return ErrNotWorkspaceOwner
	}
	return nil
}

// CanJoinWithInvitation checks expiry and, for private invitations, that the
// caller's email is on the invitee list.
func CanJoinWithInvitation(inv *domain.Invitation, email string, now time.Time) error {
	if inv.Expired(now) {
		return ErrInvitationExpired
	}
	if inv.InviteType == domain.InviteTypePrivate && !inv.Invites(email) {
		return ErrNotInvited
	}
	return nil
}
