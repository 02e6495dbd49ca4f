// Package memory is an in-process implementation of the repository
// interfaces. It backs tests and the STORE_DRIVER=memory mode.
package memory

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/teamchat/internal/domain"
	"github.com/vedran77/teamchat/internal/repository"
)

var (
	_ repository.UserRepository       = (*UserRepo)(nil)
	_ repository.WorkspaceRepository  = (*WorkspaceRepo)(nil)
	_ repository.ChatRepository       = (*ChatRepo)(nil)
	_ repository.MessageRepository    = (*MessageRepo)(nil)
	_ repository.InvitationRepository = (*InvitationRepo)(nil)
)

// Store holds every table behind one lock so that cross-table operations,
// like deleting a chat with its messages, stay atomic.
type Store struct {
	mu sync.RWMutex

	users       map[uuid.UUID]domain.User
	workspaces  map[uuid.UUID]domain.Workspace
	chats       map[uuid.UUID]domain.Chat
	messages    map[uuid.UUID]domain.Message
	invitations map[uuid.UUID]domain.Invitation

	now func() time.Time
}

func NewStore() *Store {
	return &Store{
		users:       make(map[uuid.UUID]domain.User),
		workspaces:  make(map[uuid.UUID]domain.Workspace),
		chats:       make(map[uuid.UUID]domain.Chat),
		messages:    make(map[uuid.UUID]domain.Message),
		invitations: make(map[uuid.UUID]domain.Invitation),
		now:         time.Now,
	}
}

func (s *Store) Users() *UserRepo { return &UserRepo{s} }
func (s *Store) Workspaces() *WorkspaceRepo { return &WorkspaceRepo{s} }
func (s *Store) Chats() *ChatRepo { return &ChatRepo{s} }
func (s *Store) Messages() *MessageRepo { return &MessageRepo{s} }
func (s *Store) Invitations() *InvitationRepo { return &InvitationRepo{s} }

// clock matches the microsecond precision of the postgres store.
func (s *Store) clock() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func cloneWorkspace(ws domain.Workspace) domain.Workspace {
	ws.Members = slices.Clone(ws.Members)
	return ws
}

func cloneChat(c domain.Chat) domain.Chat {
	c.Members = slices.Clone(c.Members)
	return c
}

func cloneInvitation(inv domain.Invitation) domain.Invitation {
	inv.Invitees = slices.Clone(inv.Invitees)
	if inv.ExpiresAt != nil {
		t := *inv.ExpiresAt
		inv.ExpiresAt = &t
	}
	return inv
}
