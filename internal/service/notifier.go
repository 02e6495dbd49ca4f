package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/vedran77/teamchat/internal/domain"
)

// Notifier pushes changes to connected clients.
type Notifier interface {
	// NotifyMessage broadcasts a created, edited or deleted message to its chat.
	NotifyMessage(msg *domain.Message)
	// NotifyAccessRevoked drops the room subscriptions users hold for chatID.
	NotifyAccessRevoked(chatID uuid.UUID, userIDs []uuid.UUID)
	// NotifyChatRestricted drops subscriptions of users who are not members
	// of the now private chat.
	NotifyChatRestricted(chat *domain.Chat)
	NotifyChatDeleted(chatID uuid.UUID)
}

// Message event kinds published to the event stream.
const (
	MessageCreated = "message.created"
	MessageEdited  = "message.edited"
	MessageDeleted = "message.deleted"
)

// EventPublisher forwards persisted message changes to downstream consumers.
type EventPublisher interface {
	PublishMessage(ctx context.Context, kind string, msg *domain.Message) error
}
