package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vedran77/teamchat/internal/domain"
)

type WorkspaceRepo struct {
	pool *pgxpool.Pool
}

func NewWorkspaceRepo(pool *pgxpool.Pool) *WorkspaceRepo {
	return &WorkspaceRepo{pool: pool}
}

// workspaceSelect aggregates members into a JSON array so a workspace and its
// members come back in one row.
const workspaceSelect = `
	SELECT w.id, w.name, w.created_at, w.updated_at,
		COALESCE(
			(SELECT json_agg(json_build_object('user', wm.user_id, 'role', wm.role, 'joinedAt', wm.joined_at) ORDER BY wm.joined_at)
			FROM workspace_members wm WHERE wm.workspace_id = w.id),
			'[]'::json)
	FROM workspaces w`

func (r *WorkspaceRepo) Create(ctx context.Context, ws *domain.Workspace) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO workspaces (id, name, created_at, updated_at) VALUES ($1, $2, $3, $4)`,
		ws.ID, ws.Name, ws.CreatedAt, ws.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting workspace: %w", err)
	}

	for _, m := range ws.Members {
		_, err = tx.Exec(ctx,
			`INSERT INTO workspace_members (workspace_id, user_id, role, joined_at) VALUES ($1, $2, $3, $4)`,
			ws.ID, m.UserID, m.Role, m.JoinedAt,
		)
		if err != nil {
			return fmt.Errorf("inserting workspace member: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (r *WorkspaceRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Workspace, error) {
	var ws domain.Workspace
	err := r.pool.QueryRow(ctx, workspaceSelect+` WHERE w.id = $1`, id).Scan(
		&ws.ID, &ws.Name, &ws.CreatedAt, &ws.UpdatedAt, &ws.Members,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ws, nil
}

func (r *WorkspaceRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Workspace, error) {
	query := workspaceSelect + `
		WHERE EXISTS (SELECT 1 FROM workspace_members m WHERE m.workspace_id = w.id AND m.user_id = $1)
		ORDER BY w.created_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workspaces []domain.Workspace
	for rows.Next() {
		var ws domain.Workspace
		if err := rows.Scan(&ws.ID, &ws.Name, &ws.CreatedAt, &ws.UpdatedAt, &ws.Members); err != nil {
			return nil, err
		}
		workspaces = append(workspaces, ws)
	}
	return workspaces, rows.Err()
}

func (r *WorkspaceRepo) Update(ctx context.Context, ws *domain.Workspace) error {
	_, err := r.pool.Exec(ctx, `UPDATE workspaces SET name = $1, updated_at = $2 WHERE id = $3`, ws.Name, ws.UpdatedAt, ws.ID)
	return err
}

func (r *WorkspaceRepo) AddMember(ctx context.Context, workspaceID uuid.UUID, m domain.WorkspaceMember) error {
	query := `
		INSERT INTO workspace_members (workspace_id, user_id, role, joined_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (workspace_id, user_id) DO NOTHING`
	_, err := r.pool.Exec(ctx, query, workspaceID, m.UserID, m.Role, m.JoinedAt)
	return err
}

func (r *WorkspaceRepo) RemoveMember(ctx context.Context, workspaceID, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM workspace_members WHERE workspace_id = $1 AND user_id = $2`, workspaceID, userID)
	return err
}

func (r *WorkspaceRepo) UpdateMemberRole(ctx context.Context, workspaceID, userID uuid.UUID, role domain.WorkspaceRole) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE workspace_members SET role = $1 WHERE workspace_id = $2 AND user_id = $3`,
		role, workspaceID, userID,
	)
	return err
}
