package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/vedran77/teamchat/internal/domain"
)

type WorkspaceRepo struct {
	s *Store
}

func (r *WorkspaceRepo) Create(ctx context.Context, ws *domain.Workspace) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.workspaces[ws.ID] = cloneWorkspace(*ws)
	return nil
}

func (r *WorkspaceRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Workspace, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	ws, ok := r.s.workspaces[id]
	if !ok {
		return nil, nil
	}
	ws = cloneWorkspace(ws)
	return &ws, nil
}

func (r *WorkspaceRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Workspace, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.Workspace
	for _, ws := range r.s.workspaces {
		if _, ok := ws.Member(userID); ok {
			out = append(out, cloneWorkspace(ws))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *WorkspaceRepo) Update(ctx context.Context, ws *domain.Workspace) error {
	return r.mutate(ws.ID, func(stored *domain.Workspace) {
		stored.Name = ws.Name
		stored.UpdatedAt = ws.UpdatedAt
	})
}

func (r *WorkspaceRepo) AddMember(ctx context.Context, workspaceID uuid.UUID, member domain.WorkspaceMember) error {
	return r.mutate(workspaceID, func(ws *domain.Workspace) {
		if _, ok := ws.Member(member.UserID); ok {
			return
		}
		ws.Members = append(ws.Members, member)
	})
}

func (r *WorkspaceRepo) RemoveMember(ctx context.Context, workspaceID, userID uuid.UUID) error {
	return r.mutate(workspaceID, func(ws *domain.Workspace) {
		for i, m := range ws.Members {
			if m.UserID == userID {
				ws.Members = append(ws.Members[:i], ws.Members[i+1:]...)
				return
			}
		}
	})
}

func (r *WorkspaceRepo) UpdateMemberRole(ctx context.Context, workspaceID, userID uuid.UUID, role domain.WorkspaceRole) error {
	return r.mutate(workspaceID, func(ws *domain.Workspace) {
		if m, ok := ws.Member(userID); ok {
			m.Role = role
		}
	})
}

func (r *WorkspaceRepo) mutate(id uuid.UUID, fn func(*domain.Workspace)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ws, ok := r.s.workspaces[id]
	if !ok {
		return nil
	}
	ws = cloneWorkspace(ws)
	fn(&ws)
	r.s.workspaces[id] = ws
	return nil
}
