package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vedran77/teamchat/internal/domain"
)

type MessageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

const messageColumns = "id, chat_id, sender_id, text, attachment, created_at, updated_at"

// touchUpdatedAt keeps updated_at strictly after created_at so that an
// edit is never mistaken for an untouched message.
const touchUpdatedAt = "updated_at = GREATEST(now(), created_at + interval '1 microsecond')"

func scanMessage(row pgx.Row) (*domain.Message, error) {
	var m domain.Message
	err := row.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Text, &m.Attachment, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	query := `
		INSERT INTO messages (id, chat_id, sender_id, text, attachment, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.pool.Exec(ctx, query,
		msg.ID, msg.ChatID, msg.SenderID, msg.Text, msg.Attachment, msg.CreatedAt, msg.UpdatedAt,
	)
	return err
}

func (r *MessageRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	return scanMessage(r.pool.QueryRow(ctx, "SELECT "+messageColumns+" FROM messages WHERE id = $1", id))
}

func (r *MessageRepo) ListByChat(ctx context.Context, chatID uuid.UUID) ([]domain.Message, error) {
	query := "SELECT " + messageColumns + " FROM messages WHERE chat_id = $1 ORDER BY created_at, id"

	rows, err := r.pool.Query(ctx, query, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Text, &m.Attachment, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (r *MessageRepo) UpdateBySender(ctx context.Context, id, senderID uuid.UUID, patch domain.MessagePatch) (*domain.Message, error) {
	query := `
		UPDATE messages
		SET text = COALESCE($3, text), attachment = COALESCE($4, attachment), ` + touchUpdatedAt + `
		WHERE id = $1 AND sender_id = $2
		RETURNING ` + messageColumns
	return scanMessage(r.pool.QueryRow(ctx, query, id, senderID, patch.Text, patch.Attachment))
}

func (r *MessageRepo) ClearBySender(ctx context.Context, id, senderID uuid.UUID) (*domain.Message, error) {
	query := `
		UPDATE messages
		SET text = '', attachment = '', ` + touchUpdatedAt + `
		WHERE id = $1 AND sender_id = $2
		RETURNING ` + messageColumns
	return scanMessage(r.pool.QueryRow(ctx, query, id, senderID))
}
