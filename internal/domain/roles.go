package domain

// WorkspaceRole is a member's role within a workspace.
type WorkspaceRole string

const (
	WorkspaceRoleOwner  WorkspaceRole = "owner"
	WorkspaceRoleAdmin  WorkspaceRole = "admin"
	WorkspaceRoleMember WorkspaceRole = "member"
)

func (r WorkspaceRole) Valid() bool {
	switch r {
	case WorkspaceRoleOwner, WorkspaceRoleAdmin, WorkspaceRoleMember:
		return true
	}
	return false
}

// ChatRole is a member's role within a single chat. It is independent of the
// member's workspace role.
type ChatRole string

const (
	ChatRoleOwner  ChatRole = "owner"
	ChatRoleAdmin  ChatRole = "admin"
	ChatRoleMember ChatRole = "member"
)

func (r ChatRole) Valid() bool {
	switch r {
	case ChatRoleOwner, ChatRoleAdmin, ChatRoleMember:
		return true
	}
	return false
}

type ChatType string

const (
	ChatTypeGroup ChatType = "group"
	ChatTypeDM    ChatType = "dm"
)

func (t ChatType) Valid() bool {
	return t == ChatTypeGroup || t == ChatTypeDM
}

type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

func (v Visibility) Valid() bool {
	return v == VisibilityPublic || v == VisibilityPrivate
}
