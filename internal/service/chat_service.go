package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/teamchat/internal/authz"
	"github.com/vedran77/teamchat/internal/domain"
	"github.com/vedran77/teamchat/internal/repository"
)

type ChatService struct {
	chatRepo      repository.ChatRepository
	workspaceRepo repository.WorkspaceRepository
	notifier      Notifier
	now           func() time.Time
}

func NewChatService(chatRepo repository.ChatRepository, workspaceRepo repository.WorkspaceRepository) *ChatService {
	return &ChatService{
		chatRepo:      chatRepo,
		workspaceRepo: workspaceRepo,
		now:           time.Now,
	}
}

// SetNotifier sets the real-time notifier used to evict subscriptions when
// access to a chat is lost.
func (s *ChatService) SetNotifier(n Notifier) {
	s.notifier = n
}

type CreateChatInput struct {
	WorkspaceID uuid.UUID
	Name        string
	Visibility  domain.Visibility
	ChatType    domain.ChatType
}

type UpdateChatInput struct {
	Name       *string
	Visibility *domain.Visibility
}

// Create makes a group chat with the caller as its owner. Direct messages go
// through CreateDM.
func (s *ChatService) Create(ctx context.Context, userID uuid.UUID, input CreateChatInput) (*domain.Chat, error) {
	if input.ChatType == domain.ChatTypeDM {
		return nil, ErrDMViaGroupPath
	}

	ws, err := s.getWorkspace(ctx, input.WorkspaceID)
	if err != nil {
		return nil, err
	}
	if err := authz.CanCreateChat(ws, userID); err != nil {
		return nil, err
	}

	visibility := input.Visibility
	if visibility == "" {
		visibility = domain.VisibilityPublic
	}

	now := s.clock()
	chat := &domain.Chat{
		ID:          uuid.New(),
		WorkspaceID: ws.ID,
		Name:        strings.TrimSpace(input.Name),
		ChatType:    domain.ChatTypeGroup,
		Visibility:  visibility,
		Members:     []domain.ChatMember{{UserID: userID, Role: domain.ChatRoleOwner, JoinedAt: now}},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.chatRepo.Create(ctx, chat); err != nil {
		return nil, fmt.Errorf("creating chat: %w", err)
	}
	return chat, nil
}

// CreateDM returns the dm between the caller and peer in the workspace,
// creating it on first use. The second return value reports creation.
func (s *ChatService) CreateDM(ctx context.Context, userID, workspaceID, peerID uuid.UUID) (*domain.Chat, bool, error) {
	if userID == peerID {
		return nil, false, ErrDMWithSelf
	}

	ws, err := s.getWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, false, err
	}
	if err := authz.CanCreateDM(ws, userID, peerID); err != nil {
		return nil, false, err
	}

	key := domain.DMKey(userID, peerID)
	existing, err := s.chatRepo.GetDM(ctx, ws.ID, key)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	now := s.clock()
	chat := &domain.Chat{
		ID:          uuid.New(),
		WorkspaceID: ws.ID,
		ChatType:    domain.ChatTypeDM,
		Visibility:  domain.VisibilityPrivate,
		Members: []domain.ChatMember{
			{UserID: userID, Role: domain.ChatRoleOwner, JoinedAt: now},
			{UserID: peerID, Role: domain.ChatRoleOwner, JoinedAt: now},
		},
		DMKey:     key,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.chatRepo.Create(ctx, chat)
	if errors.Is(err, repository.ErrDuplicate) {
		// Lost a race with a concurrent create for the same pair.
		existing, err := s.chatRepo.GetDM(ctx, ws.ID, key)
		if err != nil {
			return nil, false, err
		}
		if existing == nil {
			return nil, false, fmt.Errorf("dm %s vanished after conflict", key)
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("creating dm: %w", err)
	}
	return chat, true, nil
}

func (s *ChatService) Get(ctx context.Context, userID, chatID uuid.UUID) (*domain.Chat, error) {
	chat, ws, err := loadChat(ctx, s.chatRepo, s.workspaceRepo, chatID)
	if err != nil {
		return nil, err
	}
	if err := authz.CanReadChat(ws, chat, userID); err != nil {
		return nil, err
	}
	return chat, nil
}

// ListByWorkspace returns the chats of the workspace the caller can read.
func (s *ChatService) ListByWorkspace(ctx context.Context, userID, workspaceID uuid.UUID) ([]domain.Chat, error) {
	ws, err := s.getWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if err := authz.CanViewWorkspace(ws, userID); err != nil {
		return nil, err
	}

	chats, err := s.chatRepo.ListVisible(ctx, ws.ID, userID)
	if err != nil {
		return nil, err
	}
	if chats == nil {
		chats = []domain.Chat{}
	}
	return chats, nil
}

func (s *ChatService) Update(ctx context.Context, userID, chatID uuid.UUID, input UpdateChatInput) (*domain.Chat, error) {
	chat, err := s.getChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if err := authz.CanUpdateChat(chat, userID); err != nil {
		return nil, err
	}

	restricted := false
	if input.Name != nil {
		chat.Name = strings.TrimSpace(*input.Name)
	}
	if input.Visibility != nil {
		restricted = !chat.IsPrivate() && *input.Visibility == domain.VisibilityPrivate
		chat.Visibility = *input.Visibility
	}
	chat.UpdatedAt = s.clock()

	if err := s.chatRepo.Update(ctx, chat); err != nil {
		return nil, fmt.Errorf("updating chat: %w", err)
	}

	if restricted && s.notifier != nil {
		s.notifier.NotifyChatRestricted(chat)
	}
	return chat, nil
}

func (s *ChatService) Delete(ctx context.Context, userID, chatID uuid.UUID) error {
	chat, err := s.getChat(ctx, chatID)
	if err != nil {
		return err
	}
	if err := authz.CanDeleteChat(chat, userID); err != nil {
		return err
	}

	if err := s.chatRepo.Delete(ctx, chat.ID); err != nil {
		return fmt.Errorf("deleting chat: %w", err)
	}

	if s.notifier != nil {
		s.notifier.NotifyChatDeleted(chat.ID)
	}
	return nil
}

// AddMembers adds workspace members to the chat as plain members. Users who
// already belong to the chat are skipped.
func (s *ChatService) AddMembers(ctx context.Context, userID, chatID uuid.UUID, memberIDs []uuid.UUID) (*domain.Chat, error) {
	chat, ws, err := loadChat(ctx, s.chatRepo, s.workspaceRepo, chatID)
	if err != nil {
		return nil, err
	}
	if err := authz.CanAddChatMembers(ws, chat, userID, memberIDs); err != nil {
		return nil, err
	}

	now := s.clock()
	var added []domain.ChatMember
	seen := make(map[uuid.UUID]struct{}, len(memberIDs))
	for _, id := range memberIDs {
		if _, dup := seen[id]; dup || authz.IsChatMember(chat, id) {
			continue
		}
		seen[id] = struct{}{}
		added = append(added, domain.ChatMember{UserID: id, Role: domain.ChatRoleMember, JoinedAt: now})
	}

	if len(added) > 0 {
		if err := s.chatRepo.AddMembers(ctx, chat.ID, added); err != nil {
			return nil, fmt.Errorf("adding chat members: %w", err)
		}
		chat.Members = append(chat.Members, added...)
	}
	return chat, nil
}

func (s *ChatService) RemoveMember(ctx context.Context, userID, chatID, targetID uuid.UUID) (*domain.Chat, error) {
	chat, err := s.getChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if err := authz.CanRemoveChatMember(chat, userID, targetID); err != nil {
		return nil, err
	}
	if !authz.IsChatMember(chat, targetID) {
		return nil, ErrMemberNotFound
	}

	if err := s.chatRepo.RemoveMember(ctx, chat.ID, targetID); err != nil {
		return nil, fmt.Errorf("removing chat member: %w", err)
	}

	for i, m := range chat.Members {
		if m.UserID == targetID {
			chat.Members = append(chat.Members[:i], chat.Members[i+1:]...)
			break
		}
	}

	// Public chats stay readable by workspace members, so only private
	// chats lose the subscription.
	if chat.IsPrivate() && s.notifier != nil {
		s.notifier.NotifyAccessRevoked(chat.ID, []uuid.UUID{targetID})
	}
	return chat, nil
}

func (s *ChatService) getChat(ctx context.Context, chatID uuid.UUID) (*domain.Chat, error) {
	chat, err := s.chatRepo.GetByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if chat == nil {
		return nil, ErrChatNotFound
	}
	return chat, nil
}

func (s *ChatService) getWorkspace(ctx context.Context, workspaceID uuid.UUID) (*domain.Workspace, error) {
	ws, err := s.workspaceRepo.GetByID(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if ws == nil {
		return nil, ErrWorkspaceNotFound
	}
	return ws, nil
}

func (s *ChatService) clock() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}
