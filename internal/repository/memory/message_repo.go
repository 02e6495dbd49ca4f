package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/teamchat/internal/domain"
)

type MessageRepo struct {
	s *Store
}

func (r *MessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.messages[msg.ID] = *msg
	return nil
}

func (r *MessageRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	m, ok := r.s.messages[id]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (r *MessageRepo) ListByChat(ctx context.Context, chatID uuid.UUID) ([]domain.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.Message
	for _, m := range r.s.messages {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MessageRepo) UpdateBySender(ctx context.Context, id, senderID uuid.UUID, patch domain.MessagePatch) (*domain.Message, error) {
	return r.modify(id, senderID, func(m *domain.Message) {
		if patch.Text != nil {
			m.Text = *patch.Text
		}
		if patch.Attachment != nil {
			m.Attachment = *patch.Attachment
		}
	})
}

func (r *MessageRepo) ClearBySender(ctx context.Context, id, senderID uuid.UUID) (*domain.Message, error) {
	return r.modify(id, senderID, func(m *domain.Message) {
		m.Text = ""
		m.Attachment = ""
	})
}

// modify runs fn and bumps UpdatedAt under the store lock when the message
// exists and was sent by senderID.
func (r *MessageRepo) modify(id, senderID uuid.UUID, fn func(*domain.Message)) (*domain.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.messages[id]
	if !ok || m.SenderID != senderID {
		return nil, nil
	}
	fn(&m)
	m.UpdatedAt = r.s.clock()
	if !m.UpdatedAt.After(m.CreatedAt) {
		m.UpdatedAt = m.CreatedAt.Add(time.Microsecond)
	}
	r.s.messages[id] = m
	return &m, nil
}
