package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/vedran77/teamchat/internal/domain"
	"github.com/vedran77/teamchat/internal/repository"
)

type ChatRepo struct {
	s *Store
}

func (r *ChatRepo) Create(ctx context.Context, chat *domain.Chat) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if chat.DMKey != "" {
		for _, c := range r.s.chats {
			if c.WorkspaceID == chat.WorkspaceID && c.DMKey == chat.DMKey {
				return repository.ErrDuplicate
			}
		}
	}
	r.s.chats[chat.ID] = cloneChat(*chat)
	return nil
}

func (r *ChatRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Chat, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.chats[id]
	if !ok {
		return nil, nil
	}
	c = cloneChat(c)
	return &c, nil
}

func (r *ChatRepo) GetDM(ctx context.Context, workspaceID uuid.UUID, dmKey string) (*domain.Chat, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, c := range r.s.chats {
		if c.WorkspaceID == workspaceID && c.DMKey == dmKey {
			c = cloneChat(c)
			return &c, nil
		}
	}
	return nil, nil
}

func (r *ChatRepo) ListVisible(ctx context.Context, workspaceID, userID uuid.UUID) ([]domain.Chat, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.Chat
	for _, c := range r.s.chats {
		if c.WorkspaceID != workspaceID {
			continue
		}
		if _, member := c.Member(userID); member || !c.IsPrivate() {
			out = append(out, cloneChat(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *ChatRepo) Update(ctx context.Context, chat *domain.Chat) error {
	return r.mutate(chat.ID, func(c *domain.Chat) {
		c.Name = chat.Name
		c.Visibility = chat.Visibility
		c.UpdatedAt = chat.UpdatedAt
	})
}

func (r *ChatRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.chats, id)
	for mid, m := range r.s.messages {
		if m.ChatID == id {
			delete(r.s.messages, mid)
		}
	}
	return nil
}

func (r *ChatRepo) AddMembers(ctx context.Context, chatID uuid.UUID, members []domain.ChatMember) error {
	return r.mutate(chatID, func(c *domain.Chat) {
		for _, m := range members {
			if _, ok := c.Member(m.UserID); !ok {
				c.Members = append(c.Members, m)
			}
		}
	})
}

func (r *ChatRepo) RemoveMember(ctx context.Context, chatID, userID uuid.UUID) error {
	return r.mutate(chatID, func(c *domain.Chat) {
		removeChatMember(c, userID)
	})
}

func (r *ChatRepo) LeaveGroups(ctx context.Context, workspaceID, userID uuid.UUID) ([]uuid.UUID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var left []uuid.UUID
	for id, c := range r.s.chats {
		if c.WorkspaceID != workspaceID || c.IsDM() {
			continue
		}
		c = cloneChat(c)
		if removeChatMember(&c, userID) {
			r.s.chats[id] = c
			left = append(left, id)
		}
	}
	return left, nil
}

func (r *ChatRepo) mutate(id uuid.UUID, fn func(*domain.Chat)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.chats[id]
	if !ok {
		return nil
	}
	c = cloneChat(c)
	fn(&c)
	r.s.chats[id] = c
	return nil
}

func removeChatMember(c *domain.Chat, userID uuid.UUID) bool {
	for i, m := range c.Members {
		if m.UserID == userID {
			c.Members = append(c.Members[:i], c.Members[i+1:]...)
			return true
		}
	}
	return false
}
