package chat

import "time"

// Session is the serialisable view of one chat widget session.
type Session struct {
	ID        string    `json:"id"`
	PersonaID string    `json:"personaId"`
	Open      bool      `json:"open"`
	Resolving bool      `json:"resolving"`
	Messages  int       `json:"messageCount"`
	CreatedAt time.Time `json:"createdAt"`
}
