package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vedran77/teamchat/internal/domain"
	"github.com/vedran77/teamchat/internal/repository"
)

type ChatRepo struct {
	pool *pgxpool.Pool
}

func NewChatRepo(pool *pgxpool.Pool) *ChatRepo {
	return &ChatRepo{pool: pool}
}

const chatSelect = `
	SELECT c.id, c.workspace_id, c.name, c.chat_type, c.visibility, COALESCE(c.dm_key, ''),
		c.created_at, c.updated_at,
		COALESCE(
			(SELECT json_agg(json_build_object('user', cm.user_id, 'role', cm.role, 'joinedAt', cm.joined_at) ORDER BY cm.joined_at)
			FROM chat_members cm WHERE cm.chat_id = c.id),
			'[]'::json)
	FROM chats c`

func scanChat(row pgx.Row) (*domain.Chat, error) {
	var c domain.Chat
	err := row.Scan(
		&c.ID, &c.WorkspaceID, &c.Name, &c.ChatType, &c.Visibility, &c.DMKey,
		&c.CreatedAt, &c.UpdatedAt, &c.Members,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ChatRepo) Create(ctx context.Context, chat *domain.Chat) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO chats (id, workspace_id, name, chat_type, visibility, dm_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8)`
	_, err = tx.Exec(ctx, query,
		chat.ID, chat.WorkspaceID, chat.Name, chat.ChatType, chat.Visibility, chat.DMKey, chat.CreatedAt, chat.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return repository.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("inserting chat: %w", err)
	}

	if err := insertChatMembers(ctx, tx, chat.ID, chat.Members); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *ChatRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Chat, error) {
	c, err := scanChat(r.pool.QueryRow(ctx, chatSelect+` WHERE c.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

func (r *ChatRepo) GetDM(ctx context.Context, workspaceID uuid.UUID, dmKey string) (*domain.Chat, error) {
	c, err := scanChat(r.pool.QueryRow(ctx, chatSelect+` WHERE c.workspace_id = $1 AND c.dm_key = $2`, workspaceID, dmKey))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

func (r *ChatRepo) ListVisible(ctx context.Context, workspaceID, userID uuid.UUID) ([]domain.Chat, error) {
	query := chatSelect + `
		WHERE c.workspace_id = $1
			AND (c.visibility = 'public'
				OR EXISTS (SELECT 1 FROM chat_members m WHERE m.chat_id = c.id AND m.user_id = $2))
		ORDER BY c.created_at`

	rows, err := r.pool.Query(ctx, query, workspaceID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chats []domain.Chat
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		chats = append(chats, *c)
	}
	return chats, rows.Err()
}

func (r *ChatRepo) Update(ctx context.Context, chat *domain.Chat) error {
	query := `UPDATE chats SET name = $1, visibility = $2, updated_at = $3 WHERE id = $4`
	_, err := r.pool.Exec(ctx, query, chat.Name, chat.Visibility, chat.UpdatedAt, chat.ID)
	return err
}

// Delete relies on ON DELETE CASCADE for members and messages.
func (r *ChatRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM chats WHERE id = $1`, id)
	return err
}

func (r *ChatRepo) AddMembers(ctx context.Context, chatID uuid.UUID, members []domain.ChatMember) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := insertChatMembers(ctx, tx, chatID, members); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *ChatRepo) RemoveMember(ctx context.Context, chatID, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM chat_members WHERE chat_id = $1 AND user_id = $2`, chatID, userID)
	return err
}

func (r *ChatRepo) LeaveGroups(ctx context.Context, workspaceID, userID uuid.UUID) ([]uuid.UUID, error) {
	query := `
		DELETE FROM chat_members cm
		USING chats c
		WHERE cm.chat_id = c.id AND c.workspace_id = $1 AND c.chat_type = 'group' AND cm.user_id = $2
		RETURNING cm.chat_id`

	rows, err := r.pool.Query(ctx, query, workspaceID, userID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

func insertChatMembers(ctx context.Context, tx pgx.Tx, chatID uuid.UUID, members []domain.ChatMember) error {
	query := `
		INSERT INTO chat_members (chat_id, user_id, role, joined_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (chat_id, user_id) DO NOTHING`
	for _, m := range members {
		if _, err := tx.Exec(ctx, query, chatID, m.UserID, m.Role, m.JoinedAt); err != nil {
			return fmt.Errorf("inserting chat member: %w", err)
		}
	}
	return nil
}
