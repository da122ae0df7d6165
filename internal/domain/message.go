package domain

import "time"

// Remitentes válidos de un mensaje.
const (
	SenderUser = "user"
	SenderAI   = "ai"
)

type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Sender         string    `json:"sender"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"created_at"`
}

// TranscriptEntry es la vista de un mensaje que expone el endpoint de historial.
// Timestamp va en milisegundos Unix.
type TranscriptEntry struct {
	Sender    string `json:"sender"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}
