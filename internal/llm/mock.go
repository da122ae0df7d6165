package llm

import "context"

// MockClient permite tests sin llamar a un proveedor real.
type MockClient struct {
	Response string
	Err      error
}

func (m *MockClient) Complete(ctx context.Context, model string, messages []ChatMessage, maxTokens int) (string, error) {
	return m.Response, m.Err
}

var _ CompletionClient = (*MockClient)(nil)
