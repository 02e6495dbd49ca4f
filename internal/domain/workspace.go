package domain

import (
	"time"

	"github.com/google/uuid"
)

type Workspace struct {
	ID        uuid.UUID         `json:"_id"`
	Name      string            `json:"name"`
	Members   []WorkspaceMember `json:"members"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

type WorkspaceMember struct {
	UserID   uuid.UUID     `json:"user"`
	Role     WorkspaceRole `json:"role"`
	JoinedAt time.Time     `json:"joinedAt"`
}

// Member returns the membership entry for userID, if any.
func (w *Workspace) Member(userID uuid.UUID) (*WorkspaceMember, bool) {
	for i := range w.Members {
		if w.Members[i].UserID == userID {
			return &w.Members[i], true
		}
	}
	return nil, false
}
