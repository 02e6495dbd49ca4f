package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/vedran77/teamchat/internal/domain"
)

// ErrDuplicate is returned by Create methods when a unique key already exists.
var ErrDuplicate = errors.New("duplicate key")

// Lookups return (nil, nil) when the row does not exist.

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
}

type WorkspaceRepository interface {
	// Create stores the workspace together with its initial members.
	Create(ctx context.Context, ws *domain.Workspace) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Workspace, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Workspace, error)
	Update(ctx context.Context, ws *domain.Workspace) error
	// AddMember is a no-op when the user is already a member.
	AddMember(ctx context.Context, workspaceID uuid.UUID, member domain.WorkspaceMember) error
	RemoveMember(ctx context.Context, workspaceID, userID uuid.UUID) error
	UpdateMemberRole(ctx context.Context, workspaceID, userID uuid.UUID, role domain.WorkspaceRole) error
}

type ChatRepository interface {
	// Create returns ErrDuplicate when a dm already exists for the same pair
	// in the same workspace.
	Create(ctx context.Context, chat *domain.Chat) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Chat, error)
	GetDM(ctx context.Context, workspaceID uuid.UUID, dmKey string) (*domain.Chat, error)
	// ListVisible returns the workspace's public chats plus every chat userID
	// is a member of, oldest first.
	ListVisible(ctx context.Context, workspaceID, userID uuid.UUID) ([]domain.Chat, error)
	Update(ctx context.Context, chat *domain.Chat) error
	// Delete removes the chat and its messages.
	Delete(ctx context.Context, id uuid.UUID) error
	// AddMembers skips users that are already members.
	AddMembers(ctx context.Context, chatID uuid.UUID, members []domain.ChatMember) error
	RemoveMember(ctx context.Context, chatID, userID uuid.UUID) error
	// LeaveGroups removes userID from every group chat of the workspace and
	// returns the ids of the chats they left.
	LeaveGroups(ctx context.Context, workspaceID, userID uuid.UUID) ([]uuid.UUID, error)
}

type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error)
	// ListByChat returns the chat's messages in creation order.
	ListByChat(ctx context.Context, chatID uuid.UUID) ([]domain.Message, error)
	// UpdateBySender applies patch only when senderID sent the message.
	// It returns (nil, nil) when no such message exists.
	UpdateBySender(ctx context.Context, id, senderID uuid.UUID, patch domain.MessagePatch) (*domain.Message, error)
	// ClearBySender empties text and attachment under the same condition.
	ClearBySender(ctx context.Context, id, senderID uuid.UUID) (*domain.Message, error)
}

type InvitationRepository interface {
	Create(ctx context.Context, inv *domain.Invitation) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Invitation, error)
	ListByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]domain.Invitation, error)
	Update(ctx context.Context, inv *domain.Invitation) error
	Delete(ctx context.Context, id uuid.UUID) error
}
