package widget

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	chatHandler "github.com/pixelforge/studio/backend/internal/handler/chat"
	"github.com/pixelforge/studio/backend/internal/model/chat"
	chatservice "github.com/pixelforge/studio/backend/internal/service/chat"
	"github.com/pixelforge/studio/backend/pkg/utils"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second
)

// Handler drives a chat widget over a WebSocket: open/close toggles and submits come in,
// transcript updates and the typing indicator go out.
type Handler struct {
	chatSvc  *chatservice.Service
	upgrader websocket.Upgrader
}

// New creates the widget handler. allowedOrigins follows the CORS list; "*" accepts any origin.
func New(chatSvc *chatservice.Service, allowedOrigins []string) *Handler {
	return &Handler{
		chatSvc: chatSvc,
		upgrader: websocket.Upgrader{
			CheckOrigin:     originChecker(allowedOrigins),
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

type inboundMessage struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// TranscriptPayload is sent on connect and after every open/close.
type TranscriptPayload struct {
	Open      bool           `json:"open"`
	Resolving bool           `json:"resolving"`
	Messages  []chat.Message `json:"messages"`
}

type TypingPayload struct {
	Resolving bool `json:"resolving"`
}

type RejectedPayload struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// connection serialises writes; gorilla allows one concurrent writer.
type connection struct {
	conn      *websocket.Conn
	sessionID string
	mu        sync.Mutex
}

func (c *connection) send(msgType string, data interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	msg := outgoingMessage{
		Type:      msgType,
		SessionID: c.sessionID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
	if err := c.conn.WriteJSON(msg); err != nil {
		log.Debug().Err(err).Str("session", c.sessionID).Str("type", msgType).Msg("websocket write failed")
	}
}

func (c *connection) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	session, err := h.chatSvc.Session(sessionID)
	if err != nil {
		utils.RespondError(w, chatHandler.StatusFor(err), err.Error())
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("session", sessionID).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	log.Info().Str("session", sessionID).Msg("widget connected")

	ctx, cancel := context.WithCancel(r.Context())
	var inflight sync.WaitGroup
	defer func() {
		cancel()
		inflight.Wait()
	}()

	c := &connection{conn: conn, sessionID: sessionID}

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})
	go pingLoop(ctx, c)

	c.send("transcript", transcriptOf(session))

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("session", sessionID).Msg("websocket read error")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

		switch msg.Type {
		case "open":
			if _, err := session.Open(); err != nil {
				c.send("error", map[string]string{"message": err.Error()})
				return
			}
			c.send("transcript", transcriptOf(session))
		case "close":
			if err := session.Close(); err != nil {
				c.send("error", map[string]string{"message": err.Error()})
				return
			}
			c.send("transcript", transcriptOf(session))
		case "message":
			// Resolve off the read loop so a second submit can be seen and rejected.
			inflight.Add(1)
			go func(text string) {
				defer inflight.Done()
				h.submit(ctx, c, session, text)
			}(msg.Text)
		default:
			c.send("error", map[string]string{"message": "unsupported message type: " + msg.Type})
		}
	}
}

func (h *Handler) submit(ctx context.Context, c *connection, session *chatservice.Session, text string) {
	reply, err := session.Submit(ctx, text, chatservice.OnUserMessage(func(msg chat.Message) {
		c.send("message", msg)
		c.send("typing", TypingPayload{Resolving: true})
	}))
	if err != nil {
		switch {
		case errors.Is(err, chatservice.ErrEmptyMessage):
			c.send("rejected", RejectedPayload{Reason: "empty", Message: err.Error()})
		case errors.Is(err, chatservice.ErrResolutionInFlight):
			c.send("rejected", RejectedPayload{Reason: "in_flight", Message: err.Error()})
		default:
			c.send("error", map[string]string{"message": err.Error()})
		}
		return
	}

	c.send("typing", TypingPayload{Resolving: false})
	c.send("message", reply)
}

func transcriptOf(session *chatservice.Session) TranscriptPayload {
	return TranscriptPayload{
		Open:      session.IsOpen(),
		Resolving: session.Resolving(),
		Messages:  session.Transcript(),
	}
}

func pingLoop(ctx context.Context, c *connection) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.ping(); err != nil {
				return
			}
		}
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}
