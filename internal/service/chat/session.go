package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pixelforge/studio/backend/internal/metrics"
	"github.com/pixelforge/studio/backend/internal/model/chat"
	"github.com/pixelforge/studio/backend/internal/model/persona"
)

var (
	ErrEmptyMessage       = errors.New("message text is empty")
	ErrResolutionInFlight = errors.New("a reply is already being resolved for this session")
	ErrSessionEnded       = errors.New("session has ended")
)

// SubmitOption customises a single Submit call.
type SubmitOption func(*submitOptions)

type submitOptions struct {
	onUserMessage func(chat.Message)
}

// OnUserMessage registers a callback invoked after the user message is appended and before
// the reply is resolved. Streaming surfaces use it to echo the message and show a typing state.
func OnUserMessage(fn func(chat.Message)) SubmitOption {
	return func(o *submitOptions) {
		o.onUserMessage = fn
	}
}

// Session is one widget instance: its open state, its transcript and its resolving flag.
type Session struct {
	id        string
	persona   persona.Persona
	resolver  *Resolver
	createdAt time.Time

	mu         sync.RWMutex
	open       bool
	greeted    bool
	ended      bool
	transcript []chat.Message

	resolving atomic.Bool
}

func newSession(id string, p persona.Persona, resolver *Resolver) *Session {
	return &Session{
		id:         id,
		persona:    p,
		resolver:   resolver,
		createdAt:  time.Now().UTC(),
		transcript: make([]chat.Message, 0, 16),
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Persona() persona.Persona {
	return s.persona
}

// Open marks the widget open. The greeting is appended on the first closed to open transition
// only; later reopenings return nil.
func (s *Session) Open() (*chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended {
		return nil, ErrSessionEnded
	}
	if s.open {
		return nil, nil
	}
	s.open = true
	if s.greeted {
		return nil, nil
	}

	s.greeted = true
	greeting := chat.NewMessage(s.id, chat.SenderBot, s.persona.Greeting)
	s.transcript = append(s.transcript, greeting)
	return &greeting, nil
}

// Close marks the widget closed. The transcript is kept.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended {
		return ErrSessionEnded
	}
	s.open = false
	return nil
}

func (s *Session) IsOpen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.open
}

// Resolving reports whether a Submit is between accepting its input and appending the reply.
func (s *Session) Resolving() bool {
	return s.resolving.Load()
}

// Transcript returns a copy of the messages in append order.
func (s *Session) Transcript() []chat.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	copied := make([]chat.Message, len(s.transcript))
	copy(copied, s.transcript)
	return copied
}

// Snapshot returns the serialisable view of the session.
func (s *Session) Snapshot() chat.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return chat.Session{
		ID:        s.id,
		PersonaID: s.persona.ID,
		Open:      s.open,
		Resolving: s.resolving.Load(),
		Messages:  len(s.transcript),
		CreatedAt: s.createdAt,
	}
}

// Submit appends the user message, resolves a reply and appends it, returning the bot
// message. Empty input and a concurrent submit are rejected without touching the transcript.
func (s *Session) Submit(ctx context.Context, userText string, opts ...SubmitOption) (chat.Message, error) {
	var options submitOptions
	for _, opt := range opts {
		opt(&options)
	}

	if strings.TrimSpace(userText) == "" {
		metrics.RecordRejected("empty")
		return chat.Message{}, ErrEmptyMessage
	}

	if !s.resolving.CompareAndSwap(false, true) {
		metrics.RecordRejected("in_flight")
		return chat.Message{}, ErrResolutionInFlight
	}
	defer s.resolving.Store(false)

	userMsg := chat.NewMessage(s.id, chat.SenderUser, userText)
	if err := s.append(userMsg); err != nil {
		metrics.RecordRejected("ended")
		return chat.Message{}, err
	}
	if options.onUserMessage != nil {
		options.onUserMessage(userMsg)
	}

	resolution := s.resolver.Resolve(ctx, s.persona, userText)

	botMsg := chat.NewMessage(s.id, chat.SenderBot, resolution.Text)
	if err := s.append(botMsg); err != nil {
		return chat.Message{}, err
	}
	return botMsg, nil
}

func (s *Session) append(msg chat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended {
		return ErrSessionEnded
	}
	s.transcript = append(s.transcript, msg)
	return nil
}

// end tears the session down and discards its transcript.
func (s *Session) end() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ended = true
	s.open = false
	s.transcript = nil
}
