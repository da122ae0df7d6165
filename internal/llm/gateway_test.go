package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap"
)

// scriptedClient responde según el modelo solicitado y registra el orden de
// los intentos.
type scriptedClient struct {
	replies      map[string]string
	failures     map[string]error
	calls        []string
	lastMessages []ChatMessage
}

func (s *scriptedClient) Complete(ctx context.Context, model string, messages []ChatMessage, maxTokens int) (string, error) {
	s.calls = append(s.calls, model)
	s.lastMessages = messages
	if err, ok := s.failures[model]; ok {
		return "", err
	}
	if reply, ok := s.replies[model]; ok {
		return reply, nil
	}
	return "", fmt.Errorf("unexpected model %s", model)
}

var _ CompletionClient = (*scriptedClient)(nil)

func TestGateway_GenerateReply(t *testing.T) {
	models := []string{"primary", "fallback-1", "fallback-2"}

	t.Run("gana el primer modelo que responde", func(t *testing.T) {
		client := &scriptedClient{replies: map[string]string{
			"primary":    "hola desde primary",
			"fallback-1": "no debería usarse",
		}}
		g := NewGateway(client, models, 2000, zap.NewNop())

		reply, err := g.GenerateReply(context.Background(), nil, "hola")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if reply != "hola desde primary" {
			t.Fatalf("expected primary reply, got %q", reply)
		}
		if len(client.calls) != 1 || client.calls[0] != "primary" {
			t.Fatalf("expected single call to primary, got %v", client.calls)
		}
	})

	t.Run("cae al siguiente modelo en orden y no sigue tras el éxito", func(t *testing.T) {
		client := &scriptedClient{
			failures: map[string]error{"primary": errors.New("status 502")},
			replies:  map[string]string{"fallback-1": "respuesta del fallback"},
		}
		g := NewGateway(client, models, 2000, zap.NewNop())

		reply, err := g.GenerateReply(context.Background(), nil, "hola")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if reply != "respuesta del fallback" {
			t.Fatalf("expected fallback reply, got %q", reply)
		}
		want := []string{"primary", "fallback-1"}
		if len(client.calls) != len(want) || client.calls[0] != want[0] || client.calls[1] != want[1] {
			t.Fatalf("expected calls %v, got %v", want, client.calls)
		}
	})

	t.Run("agotar la lista devuelve ErrAllProvidersFailed con el último detalle", func(t *testing.T) {
		client := &scriptedClient{failures: map[string]error{
			"primary":    errors.New("status 500"),
			"fallback-1": errors.New("empty response"),
			"fallback-2": errors.New("timeout final"),
		}}
		g := NewGateway(client, models, 2000, zap.NewNop())

		_, err := g.GenerateReply(context.Background(), nil, "hola")
		if !errors.Is(err, ErrAllProvidersFailed) {
			t.Fatalf("expected ErrAllProvidersFailed, got %v", err)
		}
		if !strings.Contains(err.Error(), "timeout final") {
			t.Fatalf("expected last failure detail in error, got %v", err)
		}
		if len(client.calls) != 3 {
			t.Fatalf("expected all models tried, got %v", client.calls)
		}
	})

	t.Run("el prompt lleva sistema primero y el mensaje nuevo al final", func(t *testing.T) {
		client := &scriptedClient{replies: map[string]string{"primary": "ok"}}
		g := NewGateway(client, models, 2000, zap.NewNop())

		history := []ChatMessage{
			{Role: "user", Content: "hola"},
			{Role: "assistant", Content: "¿en qué puedo ayudarte?"},
		}
		if _, err := g.GenerateReply(context.Background(), history, "¿cuánto tarda el envío?"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		msgs := client.lastMessages
		if len(msgs) != 4 {
			t.Fatalf("expected 4 prompt turns, got %d", len(msgs))
		}
		if msgs[0].Role != "system" || msgs[0].Content == "" {
			t.Fatalf("expected system instruction first, got %+v", msgs[0])
		}
		if msgs[1] != history[0] || msgs[2] != history[1] {
			t.Fatalf("expected history preserved in order, got %+v", msgs[1:3])
		}
		last := msgs[len(msgs)-1]
		if last.Role != "user" || last.Content != "¿cuánto tarda el envío?" {
			t.Fatalf("expected new message as final turn, got %+v", last)
		}
	})

	t.Run("limpia marcadores de borde de turno", func(t *testing.T) {
		client := &scriptedClient{replies: map[string]string{"primary": "<s> Hola, ¿en qué te ayudo? [/s]"}}
		g := NewGateway(client, models, 2000, zap.NewNop())

		reply, err := g.GenerateReply(context.Background(), nil, "hola")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if reply != "Hola, ¿en qué te ayudo?" {
			t.Fatalf("expected cleaned reply, got %q", reply)
		}
	})

	t.Run("sin modelos configurados falla", func(t *testing.T) {
		g := NewGateway(&scriptedClient{}, nil, 2000, zap.NewNop())

		_, err := g.GenerateReply(context.Background(), nil, "hola")
		if !errors.Is(err, ErrAllProvidersFailed) {
			t.Fatalf("expected ErrAllProvidersFailed, got %v", err)
		}
	})
}
