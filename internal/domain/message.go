package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Message is a single chat message. A deleted message keeps its row with
// text and attachment cleared.
type Message struct {
	ID         uuid.UUID `json:"_id"`
	ChatID     uuid.UUID `json:"chatId"`
	SenderID   uuid.UUID `json:"sender"`
	Text       string    `json:"text"`
	Attachment string    `json:"attachment"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// MessagePatch holds the fields an edit may change. Nil fields are left as is.
type MessagePatch struct {
	Text       *string
	Attachment *string
}

func (m *Message) modified() bool {
	return !m.UpdatedAt.Equal(m.CreatedAt)
}

func (m *Message) IsDeleted() bool {
	return m.Text == "" && m.Attachment == "" && m.modified()
}

func (m *Message) IsEdited() bool {
	return m.modified() && !m.IsDeleted()
}

func (m Message) MarshalJSON() ([]byte, error) {
	type plain Message
	return json.Marshal(struct {
		plain
		IsEdited  bool `json:"isEdited"`
		IsDeleted bool `json:"isDeleted"`
	}{
		plain:     plain(m),
		IsEdited:  m.IsEdited(),
		IsDeleted: m.IsDeleted(),
	})
}
