package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"support-chat/internal/domain"
	"support-chat/internal/llm"
	"support-chat/internal/repository"
)

var (
	ErrEmptyMessage   = errors.New("empty message")
	ErrMessageTooLong = errors.New("message too long")
)

// ReplyGenerator es el contrato hacia el gateway de completions.
type ReplyGenerator interface {
	GenerateReply(ctx context.Context, history []llm.ChatMessage, userMessage string) (string, error)
}

// ChatResult es la respuesta del orquestador: el texto generado y el id de
// sesión que el caller puede reenviar para retomar la misma conversación.
type ChatResult struct {
	Reply     string `json:"reply"`
	SessionID string `json:"sessionId"`
}

// ChatService orquesta un turno de conversación: resuelve la identidad de la
// sesión, persiste el mensaje entrante, arma el contexto, pide la respuesta
// al gateway y persiste el turno generado. Sin estado entre invocaciones más
// allá de lo persistido.
type ChatService struct {
	logger      *zap.Logger
	transcripts repository.TranscriptRepository
	contextSvc  ContextService
	gateway     ReplyGenerator
	cache       *RedisContextCache
	maxLength   int
}

func NewChatService(
	logger *zap.Logger,
	transcripts repository.TranscriptRepository,
	contextSvc ContextService,
	gateway ReplyGenerator,
	cache *RedisContextCache,
	maxLength int,
) *ChatService {
	if maxLength <= 0 {
		maxLength = 1000
	}
	return &ChatService{
		logger:      logger,
		transcripts: transcripts,
		contextSvc:  contextSvc,
		gateway:     gateway,
		cache:       cache,
		maxLength:   maxLength,
	}
}

// HandleMessage procesa un mensaje entrante. La ventana de contexto se lee
// ANTES de persistir el turno entrante: el mensaje nuevo viaja una sola vez,
// como último turno del prompt, nunca duplicado dentro de la ventana.
//
// No hay rollback entre pasos: si el gateway falla, el turno del usuario ya
// quedó persistido y la conversación queda con una pregunta sin responder.
// Eso es estado observable aceptado, no se corrige.
func (s *ChatService) HandleMessage(ctx context.Context, text, sessionID string) (ChatResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return ChatResult{}, ErrEmptyMessage
	}
	if utf8.RuneCountInString(text) > s.maxLength {
		return ChatResult{}, ErrMessageTooLong
	}

	conversationID := strings.TrimSpace(sessionID)
	if conversationID == "" {
		conversationID = uuid.NewString()
		conv := domain.Conversation{ID: conversationID, CreatedAt: time.Now().UTC()}
		if err := s.transcripts.CreateConversation(ctx, conv); err != nil {
			return ChatResult{}, fmt.Errorf("create conversation: %w", err)
		}
	}

	history, err := s.contextSvc.RecentWindow(ctx, conversationID)
	if err != nil {
		return ChatResult{}, fmt.Errorf("build context: %w", err)
	}

	userMsg := domain.Message{
		ConversationID: conversationID,
		Sender:         domain.SenderUser,
		Text:           text,
		CreatedAt:      time.Now().UTC(),
	}
	if _, err := s.transcripts.AppendMessage(ctx, userMsg); err != nil {
		return ChatResult{}, fmt.Errorf("persist user message: %w", err)
	}

	reply, err := s.gateway.GenerateReply(ctx, history, text)
	if err != nil {
		// El mensaje del usuario ya es durable; sólo se pierde la respuesta.
		// La cache todavía no conoce ese turno, así que se invalida.
		s.invalidateCache(ctx, conversationID)
		return ChatResult{}, fmt.Errorf("generate reply: %w", err)
	}

	aiMsg := domain.Message{
		ConversationID: conversationID,
		Sender:         domain.SenderAI,
		Text:           reply,
		CreatedAt:      time.Now().UTC(),
	}
	if _, err := s.transcripts.AppendMessage(ctx, aiMsg); err != nil {
		s.invalidateCache(ctx, conversationID)
		return ChatResult{}, fmt.Errorf("persist ai message: %w", err)
	}

	s.refreshCache(ctx, conversationID)

	return ChatResult{Reply: reply, SessionID: conversationID}, nil
}

// refreshCache reescribe la ventana cacheada con la ventana reciente real del
// store. Siempre la clave completa: así un hit de cache nunca puede ser una
// ventana más corta que la que tiene el store. Best-effort, sólo se loguea.
func (s *ChatService) refreshCache(ctx context.Context, conversationID string) {
	if s.cache == nil {
		return
	}
	recent, err := s.transcripts.ListRecent(ctx, conversationID, contextWindowSize)
	if err == nil {
		err = s.cache.Store(ctx, conversationID, recent)
	}
	if err != nil {
		s.logger.Warn("context cache refresh failed", zap.String("conversation_id", conversationID), zap.Error(err))
		s.invalidateCache(ctx, conversationID)
	}
}

func (s *ChatService) invalidateCache(ctx context.Context, conversationID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, conversationID); err != nil {
		s.logger.Warn("context cache invalidate failed", zap.String("conversation_id", conversationID), zap.Error(err))
	}
}

// History devuelve el transcript completo de la sesión en orden cronológico.
// Una sesión desconocida simplemente no tiene historial: lista vacía.
func (s *ChatService) History(ctx context.Context, sessionID string) ([]domain.TranscriptEntry, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return []domain.TranscriptEntry{}, nil
	}

	messages, err := s.transcripts.ListAll(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	entries := make([]domain.TranscriptEntry, 0, len(messages))
	for _, m := range messages {
		sender := domain.SenderAI
		if m.Sender == domain.SenderUser {
			sender = domain.SenderUser
		}
		entries = append(entries, domain.TranscriptEntry{
			Sender:    sender,
			Text:      m.Text,
			Timestamp: m.CreatedAt.UnixMilli(),
		})
	}
	return entries, nil
}
