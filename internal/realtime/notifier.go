package realtime

import (
	"github.com/google/uuid"
	"github.com/vedran77/teamchat/internal/domain"
	"github.com/vedran77/teamchat/internal/service"
	"go.uber.org/zap"
)

var _ service.Notifier = (*Notifier)(nil)

// Notifier implements service.Notifier on top of the Registry.
type Notifier struct {
	registry *Registry
	log      *zap.Logger
}

func NewNotifier(registry *Registry, log *zap.Logger) *Notifier {
	return &Notifier{registry: registry, log: log.Named("notifier")}
}

func (n *Notifier) NotifyMessage(msg *domain.Message) {
	data, err := Encode(EventReceiveMessage, msg)
	if err != nil {
		n.log.Error("marshal message event", zap.Stringer("message_id", msg.ID), zap.Error(err))
		return
	}
	delivered := n.registry.Broadcast(msg.ChatID, data)
	n.log.Debug("message broadcast", zap.Stringer("chat_id", msg.ChatID), zap.Int("delivered", delivered))
}

func (n *Notifier) NotifyAccessRevoked(chatID uuid.UUID, userIDs []uuid.UUID) {
	for _, userID := range userIDs {
		if evicted := n.registry.EvictUser(chatID, userID); evicted > 0 {
			n.log.Debug("evicted user from room", zap.Stringer("chat_id", chatID), zap.Stringer("user_id", userID), zap.Int("connections", evicted))
		}
	}
}

func (n *Notifier) NotifyChatRestricted(chat *domain.Chat) {
	evicted := n.registry.EvictUnless(chat.ID, func(userID uuid.UUID) bool {
		_, ok := chat.Member(userID)
		return ok
	})
	if evicted > 0 {
		n.log.Debug("room restricted", zap.Stringer("chat_id", chat.ID), zap.Int("connections", evicted))
	}
}

func (n *Notifier) NotifyChatDeleted(chatID uuid.UUID) {
	n.registry.CloseRoom(chatID)
}
