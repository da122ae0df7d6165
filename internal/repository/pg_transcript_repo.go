package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"support-chat/internal/domain"
)

// Códigos de error de Postgres que traducimos a errores de dominio.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

type PgTranscriptRepository struct {
	pool *pgxpool.Pool
}

func NewPgTranscriptRepository(pool *pgxpool.Pool) *PgTranscriptRepository {
	return &PgTranscriptRepository{pool: pool}
}

func (r *PgTranscriptRepository) CreateConversation(ctx context.Context, conv domain.Conversation) error {
	const query = `
		INSERT INTO conversations (id, created_at)
		VALUES ($1, $2)
	`
	_, err := r.pool.Exec(ctx, query, conv.ID, conv.CreatedAt)
	if isPgErr(err, pgUniqueViolation) {
		return ErrDuplicateConversation
	}
	return err
}

func (r *PgTranscriptRepository) AppendMessage(ctx context.Context, msg domain.Message) (string, error) {
	const query = `
		INSERT INTO messages (id, conversation_id, sender, text, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	_, err := r.pool.Exec(ctx, query,
		msg.ID,
		msg.ConversationID,
		msg.Sender,
		msg.Text,
		msg.CreatedAt,
	)
	if isPgErr(err, pgForeignKeyViolation) {
		return "", ErrUnknownConversation
	}
	if err != nil {
		return "", err
	}
	return msg.ID, nil
}

func (r *PgTranscriptRepository) ListRecent(ctx context.Context, conversationID string, limit int) ([]domain.Message, error) {
	// Los empates de created_at se desempatan por seq, el orden de inserción.
	const query = `
		SELECT id, conversation_id, sender, text, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	reverseMessages(messages)
	return messages, nil
}

func (r *PgTranscriptRepository) ListAll(ctx context.Context, conversationID string) ([]domain.Message, error) {
	const query = `
		SELECT id, conversation_id, sender, text, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC, seq ASC
	`
	rows, err := r.pool.Query(ctx, query, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMessages(rows)
}

type pgRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanMessages(rows pgRows) ([]domain.Message, error) {
	var messages []domain.Message
	for rows.Next() {
		var msg domain.Message
		err := rows.Scan(
			&msg.ID,
			&msg.ConversationID,
			&msg.Sender,
			&msg.Text,
			&msg.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return messages, nil
}

func reverseMessages(messages []domain.Message) {
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
}

func isPgErr(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

var _ TranscriptRepository = (*PgTranscriptRepository)(nil)
