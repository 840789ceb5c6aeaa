package chat

import (
	"time"

	"github.com/google/uuid"
)

// Sender identifies who authored a transcript entry.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// TimestampLayout renders the advisory wall-clock time shown next to a message.
const TimestampLayout = "3:04:05 PM"

// Message is one transcript entry. IDs are UUIDv7 strings, so they sort in creation order.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp string    `json:"timestamp"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewMessage stamps a message with a fresh sortable ID and the current time.
func NewMessage(sessionID string, sender Sender, text string) Message {
	now := time.Now()
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails when the random source does.
		id = uuid.New()
	}
	return Message{
		ID:        id.String(),
		SessionID: sessionID,
		Sender:    sender,
		Text:      text,
		Timestamp: now.Format(TimestampLayout),
		CreatedAt: now.UTC(),
	}
}
