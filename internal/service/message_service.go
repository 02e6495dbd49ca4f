package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/teamchat/internal/authz"
	"github.com/vedran77/teamchat/internal/domain"
	"github.com/vedran77/teamchat/internal/repository"
	"go.uber.org/zap"
)

type MessageService struct {
	messageRepo   repository.MessageRepository
	chatRepo      repository.ChatRepository
	workspaceRepo repository.WorkspaceRepository
	notifier      Notifier
	publisher     EventPublisher
	log           *zap.Logger
	now           func() time.Time
}

func NewMessageService(
	messageRepo repository.MessageRepository,
	chatRepo repository.ChatRepository,
	workspaceRepo repository.WorkspaceRepository,
	log *zap.Logger,
) *MessageService {
	return &MessageService{
		messageRepo:   messageRepo,
		chatRepo:      chatRepo,
		workspaceRepo: workspaceRepo,
		log:           log.Named("messages"),
		now:           time.Now,
	}
}

// SetNotifier sets the real-time notifier (optional dependency).
func (s *MessageService) SetNotifier(n Notifier) {
	s.notifier = n
}

// SetPublisher sets the message event publisher (optional dependency).
func (s *MessageService) SetPublisher(p EventPublisher) {
	s.publisher = p
}

type SendMessageInput struct {
	Text       *string `json:"text,omitempty"`
	Attachment *string `json:"attachment,omitempty"`
}

type EditMessageInput struct {
	Text       *string `json:"text,omitempty"`
	Attachment *string `json:"attachment,omitempty"`
}

// Send stores a new message and then broadcasts it to the chat room.
func (s *MessageService) Send(ctx context.Context, userID, chatID uuid.UUID, input SendMessageInput) (*domain.Message, error) {
	chat, ws, err := loadChat(ctx, s.chatRepo, s.workspaceRepo, chatID)
	if err != nil {
		return nil, err
	}
	if err := authz.CanPostMessage(ws, chat, userID); err != nil {
		return nil, err
	}

	text, attachment := trimmed(input.Text), trimmed(input.Attachment)
	if text == "" && attachment == "" {
		return nil, ErrEmptyMessage
	}

	now := s.now().UTC().Truncate(time.Microsecond)
	msg := &domain.Message{
		ID:         uuid.New(),
		ChatID:     chat.ID,
		SenderID:   userID,
		Text:       text,
		Attachment: attachment,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("creating message: %w", err)
	}

	s.emit(ctx, MessageCreated, msg)
	return msg, nil
}

// List returns every message of the chat, deleted ones included, oldest first.
func (s *MessageService) List(ctx context.Context, userID, chatID uuid.UUID) ([]domain.Message, error) {
	chat, ws, err := loadChat(ctx, s.chatRepo, s.workspaceRepo, chatID)
	if err != nil {
		return nil, err
	}
	if err := authz.CanReadChat(ws, chat, userID); err != nil {
		return nil, err
	}

	messages, err := s.messageRepo.ListByChat(ctx, chat.ID)
	if err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []domain.Message{}
	}
	return messages, nil
}

// Get returns one message, deleted or not, to anyone who can read its chat.
func (s *MessageService) Get(ctx context.Context, userID, messageID uuid.UUID) (*domain.Message, error) {
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, ErrMessageNotFound
	}

	chat, ws, err := loadChat(ctx, s.chatRepo, s.workspaceRepo, msg.ChatID)
	if err != nil {
		return nil, err
	}
	if err := authz.CanReadChat(ws, chat, userID); err != nil {
		return nil, err
	}
	return msg, nil
}

// Edit updates a message only when userID sent it. A missing message and a
// foreign message are both reported as forbidden.
func (s *MessageService) Edit(ctx context.Context, userID, messageID uuid.UUID, input EditMessageInput) (*domain.Message, error) {
	patch := domain.MessagePatch{Text: trimmedPtr(input.Text), Attachment: trimmedPtr(input.Attachment)}
	if patch.Text == nil && patch.Attachment == nil {
		return nil, ErrEmptyMessage
	}

	updated, err := s.messageRepo.UpdateBySender(ctx, messageID, userID, patch)
	if err != nil {
		return nil, fmt.Errorf("updating message: %w", err)
	}
	if updated == nil {
		return nil, authz.ErrNotMessageSender
	}

	s.emit(ctx, MessageEdited, updated)
	return updated, nil
}

// Delete clears text and attachment of a message sent by userID.
func (s *MessageService) Delete(ctx context.Context, userID, messageID uuid.UUID) (*domain.Message, error) {
	cleared, err := s.messageRepo.ClearBySender(ctx, messageID, userID)
	if err != nil {
		return nil, fmt.Errorf("deleting message: %w", err)
	}
	if cleared == nil {
		return nil, authz.ErrNotMessageSender
	}

	s.emit(ctx, MessageDeleted, cleared)
	return cleared, nil
}

func (s *MessageService) emit(ctx context.Context, kind string, msg *domain.Message) {
	if s.notifier != nil {
		s.notifier.NotifyMessage(msg)
	}
	if s.publisher != nil {
		if err := s.publisher.PublishMessage(ctx, kind, msg); err != nil {
			s.log.Warn("publish message event", zap.String("kind", kind), zap.Stringer("message_id", msg.ID), zap.Error(err))
		}
	}
}

// loadChat fetches a chat together with its workspace snapshot.
func loadChat(ctx context.Context, chats repository.ChatRepository, workspaces repository.WorkspaceRepository, chatID uuid.UUID) (*domain.Chat, *domain.Workspace, error) {
	chat, err := chats.GetByID(ctx, chatID)
	if err != nil {
		return nil, nil, err
	}
	if chat == nil {
		return nil, nil, ErrChatNotFound
	}
	ws, err := workspaces.GetByID(ctx, chat.WorkspaceID)
	if err != nil {
		return nil, nil, err
	}
	if ws == nil {
		return nil, nil, ErrWorkspaceNotFound
	}
	return chat, ws, nil
}

func trimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func trimmedPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
