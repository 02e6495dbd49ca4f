package domain

import (
	"time"

	"github.com/google/uuid"
)

type Chat struct {
	ID          uuid.UUID    `json:"_id"`
	WorkspaceID uuid.UUID    `json:"workspaceId"`
	Name        string       `json:"name"`
	ChatType    ChatType     `json:"chatType"`
	Visibility  Visibility   `json:"visibility"`
	Members     []ChatMember `json:"members"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`

	// DMKey identifies the participant pair of a dm chat. Empty for groups.
	DMKey string `json:"-"`
}

type ChatMember struct {
	UserID   uuid.UUID `json:"user"`
	Role     ChatRole  `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
}

func (c *Chat) IsDM() bool {
	return c.ChatType == ChatTypeDM
}

func (c *Chat) IsPrivate() bool {
	return c.Visibility == VisibilityPrivate
}

// Member returns the membership entry for userID, if any.
func (c *Chat) Member(userID uuid.UUID) (*ChatMember, bool) {
	for i := range c.Members {
		if c.Members[i].UserID == userID {
			return &c.Members[i], true
		}
	}
	return nil, false
}

// MemberIDs returns the user ids of every chat member in membership order.
func (c *Chat) MemberIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(c.Members))
	for _, m := range c.Members {
		ids = append(ids, m.UserID)
	}
	return ids
}

// DMKey returns the order-independent key for a pair of dm participants.
func DMKey(a, b uuid.UUID) string {
	x, y := a.String(), b.String()
	if y < x {
		x, y = y, x
	}
	return x + ":" + y
}
