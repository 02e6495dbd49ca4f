package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/vedran77/teamchat/internal/domain"
)

type InvitationRepo struct {
	s *Store
}

func (r *InvitationRepo) Create(ctx context.Context, inv *domain.Invitation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.invitations[inv.ID] = cloneInvitation(*inv)
	return nil
}

func (r *InvitationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Invitation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	inv, ok := r.s.invitations[id]
	if !ok {
		return nil, nil
	}
	inv = cloneInvitation(inv)
	return &inv, nil
}

func (r *InvitationRepo) ListByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]domain.Invitation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.Invitation
	for _, inv := range r.s.invitations {
		if inv.WorkspaceID == workspaceID {
			out = append(out, cloneInvitation(inv))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *InvitationRepo) Update(ctx context.Context, inv *domain.Invitation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.invitations[inv.ID]; ok {
		r.s.invitations[inv.ID] = cloneInvitation(*inv)
	}
	return nil
}

func (r *InvitationRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.invitations, id)
	return nil
}
