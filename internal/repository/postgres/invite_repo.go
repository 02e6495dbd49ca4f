package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vedran77/teamchat/internal/domain"
)

type InvitationRepo struct {
	pool *pgxpool.Pool
}

func NewInvitationRepo(pool *pgxpool.Pool) *InvitationRepo {
	return &InvitationRepo{pool: pool}
}

const invitationColumns = "id, workspace_id, invite_type, expires_at, invitees, created_at, updated_at"

func (r *InvitationRepo) Create(ctx context.Context, inv *domain.Invitation) error {
	query := `
		INSERT INTO invitations (id, workspace_id, invite_type, expires_at, invitees, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.pool.Exec(ctx, query,
		inv.ID, inv.WorkspaceID, inv.InviteType, inv.ExpiresAt, inv.Invitees, inv.CreatedAt, inv.UpdatedAt,
	)
	return err
}

func (r *InvitationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Invitation, error) {
	var inv domain.Invitation
	err := r.pool.QueryRow(ctx, "SELECT "+invitationColumns+" FROM invitations WHERE id = $1", id).Scan(
		&inv.ID, &inv.WorkspaceID, &inv.InviteType, &inv.ExpiresAt, &inv.Invitees, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *InvitationRepo) ListByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]domain.Invitation, error) {
	query := "SELECT " + invitationColumns + " FROM invitations WHERE workspace_id = $1 ORDER BY created_at"

	rows, err := r.pool.Query(ctx, query, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invitations []domain.Invitation
	for rows.Next() {
		var inv domain.Invitation
		if err := rows.Scan(&inv.ID, &inv.WorkspaceID, &inv.InviteType, &inv.ExpiresAt, &inv.Invitees, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
			return nil, err
		}
		invitations = append(invitations, inv)
	}
	return invitations, rows.Err()
}

func (r *InvitationRepo) Update(ctx context.Context, inv *domain.Invitation) error {
	query := `UPDATE invitations SET invite_type = $1, expires_at = $2, invitees = $3, updated_at = $4 WHERE id = $5`
	_, err := r.pool.Exec(ctx, query, inv.InviteType, inv.ExpiresAt, inv.Invitees, inv.UpdatedAt, inv.ID)
	return err
}

func (r *InvitationRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM invitations WHERE id = $1`, id)
	return err
}
