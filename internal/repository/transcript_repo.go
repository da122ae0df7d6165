package repository

import (
	"context"
	"errors"

	"support-chat/internal/domain"
)

var (
	// ErrDuplicateConversation indica que el id de conversación ya existe.
	ErrDuplicateConversation = errors.New("duplicate conversation")
	// ErrUnknownConversation indica un append sobre una conversación inexistente.
	ErrUnknownConversation = errors.New("unknown conversation")
)

// TranscriptRepository es el registro durable y append-only de conversaciones
// y mensajes. Las escrituras son síncronas: cuando retornan, el dato está
// persistido.
type TranscriptRepository interface {
	CreateConversation(ctx context.Context, conv domain.Conversation) error
	// AppendMessage persiste un turno y devuelve el id generado del mensaje.
	AppendMessage(ctx context.Context, msg domain.Message) (string, error)
	// ListRecent devuelve a lo sumo limit mensajes, los más recientes,
	// en orden cronológico (el más viejo primero). Conversación desconocida
	// o vacía devuelve lista vacía, no error.
	ListRecent(ctx context.Context, conversationID string, limit int) ([]domain.Message, error)
	// ListAll devuelve el transcript completo en orden cronológico.
	ListAll(ctx context.Context, conversationID string) ([]domain.Message, error)
}
