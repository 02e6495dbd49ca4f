package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type InviteType string

const (
	InviteTypePublic  InviteType = "public"
	InviteTypePrivate InviteType = "private"
)

func (t InviteType) Valid() bool {
	return t == InviteTypePublic || t == InviteTypePrivate
}

// Invitation lets users join a workspace. Private invitations are limited to
// the listed invitee emails.
type Invitation struct {
	ID          uuid.UUID  `json:"_id"`
	WorkspaceID uuid.UUID  `json:"workspaceId"`
	InviteType  InviteType `json:"inviteType"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	Invitees    []string   `json:"invitees"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func (i *Invitation) Expired(now time.Time) bool {
	return i.ExpiresAt != nil && !now.Before(*i.ExpiresAt)
}

func (i *Invitation) Invites(email string) bool {
	for _, e := range i.Invitees {
		if strings.EqualFold(e, email) {
			return true
		}
	}
	return false
}
