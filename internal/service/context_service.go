package service

import (
	"context"
	"fmt"
	"strings"

	"support-chat/internal/domain"
	"support-chat/internal/llm"
	"support-chat/internal/repository"
)

// contextWindowSize acota el prompt a los últimos N turnos. Ventana de
// recencia simple: el contexto más viejo se descarta, no se resume.
const contextWindowSize = 10

// ContextService define contrato para recuperar la ventana de contexto
// que se entrega al backend de completions.
type ContextService interface {
	RecentWindow(ctx context.Context, conversationID string) ([]llm.ChatMessage, error)
}

// BasicContextService obtiene los últimos mensajes del transcript y los
// mapea a turnos con rol. Si hay cache Redis configurada la consulta primero
// y cae al store cuando la clave está vacía o ilegible. Un hit se puede
// servir directo porque la cache sólo se escribe como ventana completa.
type BasicContextService struct {
	transcripts repository.TranscriptRepository
	cache       *RedisContextCache
}

func NewBasicContextService(transcripts repository.TranscriptRepository, cache *RedisContextCache) *BasicContextService {
	return &BasicContextService{transcripts: transcripts, cache: cache}
}

func (s *BasicContextService) RecentWindow(ctx context.Context, conversationID string) ([]llm.ChatMessage, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return nil, nil
	}

	if cached, err := s.cache.Recent(ctx, conversationID); err == nil && len(cached) > 0 {
		return toChatMessages(cached), nil
	}

	messages, err := s.transcripts.ListRecent(ctx, conversationID, contextWindowSize)
	if err != nil {
		return nil, fmt.Errorf("list recent messages: %w", err)
	}
	return toChatMessages(messages), nil
}

// toChatMessages traduce remitentes a los dos roles del backend:
// user queda como user, cualquier otro remitente es assistant.
func toChatMessages(messages []domain.Message) []llm.ChatMessage {
	if len(messages) == 0 {
		return nil
	}
	out := make([]llm.ChatMessage, 0, len(messages))
	for _, m := range messages {
		role := "assistant"
		if m.Sender == domain.SenderUser {
			role = "user"
		}
		out = append(out, llm.ChatMessage{Role: role, Content: m.Text})
	}
	return out
}

var _ ContextService = (*BasicContextService)(nil)
