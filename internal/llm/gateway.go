package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// ErrAllProvidersFailed indica que ningún modelo de la lista produjo respuesta.
var ErrAllProvidersFailed = errors.New("all providers failed")

// systemPrompt define al agente como soporte de la tienda. Incluye las
// políticas para responder FAQs de forma confiable sin consultar otra fuente.
const systemPrompt = `You are a helpful support agent for our small e-commerce store. Your role is to assist customers with inquiries about products, orders, shipping, returns, and general support.

Store Policies:
- Shipping: We ship to India and the USA. Delivery typically takes 5–7 business days.
- Returns: We offer a 7-day return window. Items must be unused and in original packaging.
- Refunds: Refunds are processed within 5 business days after receiving the returned item.
- Support Hours: Our support team is available Monday to Friday, 9am–6pm IST.

Always be polite, helpful, and provide accurate information based on these policies. If a question is outside your knowledge, suggest contacting support during business hours.`

// Gateway obtiene una respuesta generada probando una lista ordenada de
// modelos, secuencial y sin reintentos: gana el primero que responde.
// El orden codifica la preferencia costo/calidad, así que nunca se
// paraleliza ni se reordena.
type Gateway struct {
	client    CompletionClient
	models    []string
	prompt    string
	maxTokens int
	logger    *zap.Logger
}

func NewGateway(client CompletionClient, models []string, maxTokens int, logger *zap.Logger) *Gateway {
	if maxTokens <= 0 {
		maxTokens = 2000
	}
	return &Gateway{
		client:    client,
		models:    models,
		prompt:    systemPrompt,
		maxTokens: maxTokens,
		logger:    logger,
	}
}

// GenerateReply arma el prompt completo (instrucción de sistema + historial +
// mensaje nuevo como último turno) y recorre los modelos en orden. Falla con
// ErrAllProvidersFailed, envolviendo el último error, sólo si se agota la lista.
func (g *Gateway) GenerateReply(ctx context.Context, history []ChatMessage, userMessage string) (string, error) {
	messages := make([]ChatMessage, 0, len(history)+2)
	messages = append(messages, ChatMessage{Role: "system", Content: g.prompt})
	messages = append(messages, history...)
	messages = append(messages, ChatMessage{Role: "user", Content: userMessage})

	var lastErr error
	for _, model := range g.models {
		reply, err := g.client.Complete(ctx, model, messages, g.maxTokens)
		if err != nil {
			if g.logger != nil {
				g.logger.Warn("provider attempt failed", zap.String("model", model), zap.Error(err))
			}
			lastErr = err
			continue
		}
		return cleanReply(reply), nil
	}

	if lastErr == nil {
		lastErr = errors.New("no models configured")
	}
	return "", fmt.Errorf("%w: %v", ErrAllProvidersFailed, lastErr)
}

// cleanReply quita marcadores de borde de turno que algunos modelos dejan
// escapar en el texto generado.
func cleanReply(raw string) string {
	s := strings.ReplaceAll(raw, "<s>", "")
	s = strings.ReplaceAll(s, "[/s]", "")
	return strings.TrimSpace(s)
}
