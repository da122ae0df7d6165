package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"support-chat/internal/domain"
	"support-chat/internal/llm"
	"support-chat/internal/repository"
	"support-chat/internal/service"
)

type memTranscriptRepo struct {
	conversations map[string]domain.Conversation
	messages      map[string][]domain.Message
}

func newMemTranscriptRepo() *memTranscriptRepo {
	return &memTranscriptRepo{
		conversations: make(map[string]domain.Conversation),
		messages:      make(map[string][]domain.Message),
	}
}

func (m *memTranscriptRepo) CreateConversation(_ context.Context, conv domain.Conversation) error {
	if _, ok := m.conversations[conv.ID]; ok {
		return repository.ErrDuplicateConversation
	}
	m.conversations[conv.ID] = conv
	return nil
}

func (m *memTranscriptRepo) AppendMessage(_ context.Context, msg domain.Message) (string, error) {
	if _, ok := m.conversations[msg.ConversationID]; !ok {
		return "", repository.ErrUnknownConversation
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	m.messages[msg.ConversationID] = append(m.messages[msg.ConversationID], msg)
	return msg.ID, nil
}

func (m *memTranscriptRepo) ListRecent(_ context.Context, conversationID string, limit int) ([]domain.Message, error) {
	msgs := m.messages[conversationID]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

func (m *memTranscriptRepo) ListAll(_ context.Context, conversationID string) ([]domain.Message, error) {
	return m.messages[conversationID], nil
}

var _ repository.TranscriptRepository = (*memTranscriptRepo)(nil)

type fakeGateway struct {
	reply string
	err   error
}

func (f *fakeGateway) GenerateReply(_ context.Context, _ []llm.ChatMessage, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func setupRouter(gw service.ReplyGenerator) (*gin.Engine, *memTranscriptRepo) {
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()
	repo := newMemTranscriptRepo()
	contextSvc := service.NewBasicContextService(repo, nil)
	chatSvc := service.NewChatService(logger, repo, contextSvc, gw, nil, 1000)
	handler := NewChatHandler(logger, chatSvc)
	return NewRouter(logger, nil, handler), repo
}

func postMessage(t *testing.T, router *gin.Engine, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/chat/message", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestPostMessage(t *testing.T) {
	t.Run("mensaje válido devuelve reply y sessionId", func(t *testing.T) {
		router, _ := setupRouter(&fakeGateway{reply: "¡Hola! ¿En qué puedo ayudarte?"})

		w := postMessage(t, router, `{"message":"Hello"}`)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
		var resp struct {
			Reply     string `json:"reply"`
			SessionID string `json:"sessionId"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("invalid response json: %v", err)
		}
		if resp.Reply == "" || resp.SessionID == "" {
			t.Fatalf("expected reply and sessionId, got %+v", resp)
		}
	})

	t.Run("mensaje vacío rechazado", func(t *testing.T) {
		router, _ := setupRouter(&fakeGateway{reply: "ok"})

		for _, body := range []string{`{}`, `{"message":"   "}`} {
			w := postMessage(t, router, body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400 for %s, got %d", body, w.Code)
			}
		}
	})

	t.Run("mensaje demasiado largo rechazado", func(t *testing.T) {
		router, _ := setupRouter(&fakeGateway{reply: "ok"})

		body := fmt.Sprintf(`{"message":%q}`, strings.Repeat("a", 1001))
		w := postMessage(t, router, body)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
	})

	t.Run("sessionId desconocido devuelve 404", func(t *testing.T) {
		router, _ := setupRouter(&fakeGateway{reply: "ok"})

		w := postMessage(t, router, `{"message":"Hello","sessionId":"no-existe"}`)
		if w.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
		}
	})

	t.Run("agotamiento de proveedores devuelve 500 sin persistir respuesta", func(t *testing.T) {
		router, repo := setupRouter(&fakeGateway{err: fmt.Errorf("%w: status 500", llm.ErrAllProvidersFailed)})

		w := postMessage(t, router, `{"message":"Hello"}`)
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", w.Code)
		}
		for _, msgs := range repo.messages {
			for _, m := range msgs {
				if m.Sender == domain.SenderAI {
					t.Fatalf("no ai message should be persisted, got %+v", m)
				}
			}
		}
	})
}

func TestGetHistory(t *testing.T) {
	t.Run("historial tras dos turnos", func(t *testing.T) {
		router, _ := setupRouter(&fakeGateway{reply: "Lunes a viernes de 9 a 18 IST."})

		w := postMessage(t, router, `{"message":"Hello"}`)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		var first struct {
			SessionID string `json:"sessionId"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &first); err != nil {
			t.Fatal(err)
		}

		w = postMessage(t, router, fmt.Sprintf(`{"message":"What are your hours?","sessionId":%q}`, first.SessionID))
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}

		req := httptest.NewRequest(http.MethodGet, "/chat/history/"+first.SessionID, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}

		var resp struct {
			Messages []domain.TranscriptEntry `json:"messages"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if len(resp.Messages) != 4 {
			t.Fatalf("expected 4 messages, got %d", len(resp.Messages))
		}
		third := resp.Messages[2]
		if third.Sender != domain.SenderUser || third.Text != "What are your hours?" {
			t.Fatalf("unexpected third message: %+v", third)
		}
	})

	t.Run("sesión desconocida devuelve lista vacía", func(t *testing.T) {
		router, _ := setupRouter(&fakeGateway{reply: "ok"})

		req := httptest.NewRequest(http.MethodGet, "/chat/history/no-existe", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var resp struct {
			Messages []domain.TranscriptEntry `json:"messages"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if len(resp.Messages) != 0 {
			t.Fatalf("expected empty history, got %d", len(resp.Messages))
		}
	})
}

func TestHealth(t *testing.T) {
	router, _ := setupRouter(&fakeGateway{reply: "ok"})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Status    string `json:"status"`
		Timestamp string `json:"timestamp"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "ok" {
		t.Fatalf("expected status ok, got %q", resp.Status)
	}
	if _, err := time.Parse(time.RFC3339, resp.Timestamp); err != nil {
		t.Fatalf("expected RFC3339 timestamp, got %q", resp.Timestamp)
	}
}
