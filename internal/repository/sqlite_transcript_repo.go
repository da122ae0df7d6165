package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	sqlite3 "github.com/mattn/go-sqlite3"

	"support-chat/internal/domain"
)

// SQLiteTranscriptRepository respalda el transcript en un archivo SQLite,
// para despliegues de binario único sin Postgres.
type SQLiteTranscriptRepository struct {
	db *sql.DB
}

// OpenSQLite abre (o crea) la base en path y asegura el esquema.
func OpenSQLite(path string) (*SQLiteTranscriptRepository, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db at %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db at %s: %w", path, err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL REFERENCES conversations(id),
			sender TEXT NOT NULL,
			text TEXT NOT NULL,
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &SQLiteTranscriptRepository{db: db}, nil
}

func (r *SQLiteTranscriptRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteTranscriptRepository) CreateConversation(ctx context.Context, conv domain.Conversation) error {
	const query = `INSERT INTO conversations (id, created_at) VALUES (?, ?)`
	_, err := r.db.ExecContext(ctx, query, conv.ID, conv.CreatedAt.UTC().Format(time.RFC3339Nano))
	if isSQLiteConstraintErr(err, sqlite3.ErrConstraintPrimaryKey, sqlite3.ErrConstraintUnique) {
		return ErrDuplicateConversation
	}
	return err
}

func (r *SQLiteTranscriptRepository) AppendMessage(ctx context.Context, msg domain.Message) (string, error) {
	const query = `
		INSERT INTO messages (id, conversation_id, sender, text, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, query,
		msg.ID,
		msg.ConversationID,
		msg.Sender,
		msg.Text,
		msg.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if isSQLiteConstraintErr(err, sqlite3.ErrConstraintForeignKey) {
		return "", ErrUnknownConversation
	}
	if err != nil {
		return "", err
	}
	return msg.ID, nil
}

func (r *SQLiteTranscriptRepository) ListRecent(ctx context.Context, conversationID string, limit int) ([]domain.Message, error) {
	// rowid desempata los created_at iguales conservando el orden de inserción.
	const query = `
		SELECT id, conversation_id, sender, text, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages, err := scanSQLiteMessages(rows)
	if err != nil {
		return nil, err
	}
	reverseMessages(messages)
	return messages, nil
}

func (r *SQLiteTranscriptRepository) ListAll(ctx context.Context, conversationID string) ([]domain.Message, error) {
	const query = `
		SELECT id, conversation_id, sender, text, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at ASC, rowid ASC
	`
	rows, err := r.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSQLiteMessages(rows)
}

func scanSQLiteMessages(rows *sql.Rows) ([]domain.Message, error) {
	var messages []domain.Message
	for rows.Next() {
		var msg domain.Message
		var createdAt string
		err := rows.Scan(
			&msg.ID,
			&msg.ConversationID,
			&msg.Sender,
			&msg.Text,
			&createdAt,
		)
		if err != nil {
			return nil, err
		}
		msg.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at %q: %w", createdAt, err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return messages, nil
}

func isSQLiteConstraintErr(err error, codes ...sqlite3.ErrNoExtended) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	for _, code := range codes {
		if sqliteErr.ExtendedCode == code {
			return true
		}
	}
	return false
}

var _ TranscriptRepository = (*SQLiteTranscriptRepository)(nil)
