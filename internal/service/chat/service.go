package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog/log"

	"github.com/pixelforge/studio/backend/internal/metrics"
	"github.com/pixelforge/studio/backend/internal/model/chat"
	"github.com/pixelforge/studio/backend/internal/model/persona"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrPersonaNotFound = errors.New("persona not found")
)

// Service is the in-memory registry of widget sessions. The least recently used session is
// torn down once the registry is full.
type Service struct {
	personas       persona.Store
	resolver       *Resolver
	defaultPersona string
	sessions       *lru.Cache
}

// NewService creates a registry holding at most maxSessions live sessions.
func NewService(personas persona.Store, resolver *Resolver, maxSessions int, defaultPersona string) (*Service, error) {
	if personas == nil || resolver == nil {
		return nil, errors.New("persona store and resolver are required")
	}
	if defaultPersona == "" {
		defaultPersona = persona.DefaultID
	}

	sessions, err := lru.NewWithEvict(maxSessions, func(key, value interface{}) {
		if session, ok := value.(*Session); ok {
			session.end()
			log.Debug().Str("session", session.ID()).Msg("session torn down")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("create session registry: %w", err)
	}

	return &Service{
		personas:       personas,
		resolver:       resolver,
		defaultPersona: defaultPersona,
		sessions:       sessions,
	}, nil
}

// CreateSession provisions an anonymous, closed session bound to a persona. An empty persona
// id selects the default persona.
func (s *Service) CreateSession(_ context.Context, personaID string) (chat.Session, error) {
	if personaID == "" {
		personaID = s.defaultPersona
	}
	p, ok := s.personas.FindByID(personaID)
	if !ok {
		return chat.Session{}, fmt.Errorf("%w: %s", ErrPersonaNotFound, personaID)
	}

	session := newSession(uuid.NewString(), p, s.resolver)
	if s.sessions.Add(session.ID(), session) {
		log.Info().Msg("session registry full, evicted least recently used session")
	}
	metrics.SetActiveSessions(s.sessions.Len())

	return session.Snapshot(), nil
}

// Session returns the live session for streaming surfaces.
func (s *Service) Session(sessionID string) (*Session, error) {
	value, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return value.(*Session), nil
}

// GetSession retrieves a session snapshot by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	session, err := s.Session(sessionID)
	if err != nil {
		return chat.Session{}, err
	}
	return session.Snapshot(), nil
}

// OpenSession opens the widget, returning the greeting when this is the first opening.
func (s *Service) OpenSession(_ context.Context, sessionID string) (chat.Session, *chat.Message, error) {
	session, err := s.Session(sessionID)
	if err != nil {
		return chat.Session{}, nil, err
	}
	greeting, err := session.Open()
	if err != nil {
		return chat.Session{}, nil, err
	}
	return session.Snapshot(), greeting, nil
}

// CloseSession closes the widget without discarding the transcript.
func (s *Service) CloseSession(_ context.Context, sessionID string) (chat.Session, error) {
	session, err := s.Session(sessionID)
	if err != nil {
		return chat.Session{}, err
	}
	if err := session.Close(); err != nil {
		return chat.Session{}, err
	}
	return session.Snapshot(), nil
}

// EndSession tears the session down and drops it from the registry.
func (s *Service) EndSession(_ context.Context, sessionID string) error {
	if !s.sessions.Remove(sessionID) {
		return ErrSessionNotFound
	}
	metrics.SetActiveSessions(s.sessions.Len())
	return nil
}

// Submit forwards to the session's Submit.
func (s *Service) Submit(ctx context.Context, sessionID, text string, opts ...SubmitOption) (chat.Message, error) {
	session, err := s.Session(sessionID)
	if err != nil {
		return chat.Message{}, err
	}
	return session.Submit(ctx, text, opts...)
}

// LoadTranscript returns the messages of the provided session in append order.
func (s *Service) LoadTranscript(_ context.Context, sessionID string) ([]chat.Message, error) {
	session, err := s.Session(sessionID)
	if err != nil {
		return nil, err
	}
	return session.Transcript(), nil
}

// Personas exposes the persona catalogue.
func (s *Service) Personas() []persona.Persona {
	return s.personas.List()
}

// Len reports the number of live sessions.
func (s *Service) Len() int {
	return s.sessions.Len()
}
