package widget

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelforge/studio/backend/internal/analysis/fallback"
	"github.com/pixelforge/studio/backend/internal/model/chat"
	"github.com/pixelforge/studio/backend/internal/model/persona"
	"github.com/pixelforge/studio/backend/internal/service/ai"
	chatservice "github.com/pixelforge/studio/backend/internal/service/chat"
)

type gatedRemote struct {
	release chan struct{}
}

func (g *gatedRemote) Enabled() bool { return true }

func (g *gatedRemote) Generate(ctx context.Context, _, _ string) ai.Result {
	select {
	case <-g.release:
		return ai.Succeeded("remote reply")
	case <-ctx.Done():
		return ai.Failed(ai.FailureTimeout, ctx.Err())
	}
}

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func setup(t *testing.T, remote chatservice.Remote) (*httptest.Server, *chatservice.Service) {
	t.Helper()
	resolver := chatservice.NewResolver(remote, fallback.Default(), nil)
	chatSvc, err := chatservice.NewService(persona.NewMemoryStore(persona.Seed()), resolver, 4, "")
	require.NoError(t, err)

	r := chi.NewRouter()
	New(chatSvc, []string{"*"}).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, chatSvc
}

func dial(t *testing.T, srv *httptest.Server, sessionID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + sessionID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func decode[T any](t *testing.T, f frame) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(f.Data, &v))
	return v
}

func TestWidgetOpenAndSubmit(t *testing.T) {
	srv, chatSvc := setup(t, nil)
	session, err := chatSvc.CreateSession(context.Background(), "")
	require.NoError(t, err)
	conn := dial(t, srv, session.ID)

	initial := read(t, conn)
	require.Equal(t, "transcript", initial.Type)
	assert.Empty(t, decode[TranscriptPayload](t, initial).Messages)

	require.NoError(t, conn.WriteJSON(inboundMessage{Type: "open"}))
	opened := read(t, conn)
	require.Equal(t, "transcript", opened.Type)
	state := decode[TranscriptPayload](t, opened)
	assert.True(t, state.Open)
	require.Len(t, state.Messages, 1)
	assert.Equal(t, persona.Seed()[0].Greeting, state.Messages[0].Text)

	require.NoError(t, conn.WriteJSON(inboundMessage{Type: "message", Text: "Can I see your portfolio?"}))

	user := read(t, conn)
	require.Equal(t, "message", user.Type)
	assert.Equal(t, chat.SenderUser, decode[chat.Message](t, user).Sender)

	typing := read(t, conn)
	require.Equal(t, "typing", typing.Type)
	assert.True(t, decode[TypingPayload](t, typing).Resolving)

	idle := read(t, conn)
	require.Equal(t, "typing", idle.Type)
	assert.False(t, decode[TypingPayload](t, idle).Resolving)

	bot := read(t, conn)
	require.Equal(t, "message", bot.Type)
	reply := decode[chat.Message](t, bot)
	assert.Equal(t, chat.SenderBot, reply.Sender)
	assert.Equal(t, fallback.Default().Reply("Can I see your portfolio?"), reply.Text)
}

func TestWidgetRejectsConcurrentSubmit(t *testing.T) {
	remote := &gatedRemote{release: make(chan struct{})}
	srv, chatSvc := setup(t, remote)
	session, err := chatSvc.CreateSession(context.Background(), "")
	require.NoError(t, err)
	conn := dial(t, srv, session.ID)
	read(t, conn)

	require.NoError(t, conn.WriteJSON(inboundMessage{Type: "message", Text: "a"}))
	require.Equal(t, "message", read(t, conn).Type)
	require.Equal(t, "typing", read(t, conn).Type)

	require.NoError(t, conn.WriteJSON(inboundMessage{Type: "message", Text: "b"}))
	rejected := read(t, conn)
	require.Equal(t, "rejected", rejected.Type)
	assert.Equal(t, "in_flight", decode[RejectedPayload](t, rejected).Reason)

	close(remote.release)
	require.Equal(t, "typing", read(t, conn).Type)
	bot := read(t, conn)
	require.Equal(t, "message", bot.Type)
	assert.Equal(t, "remote reply", decode[chat.Message](t, bot).Text)

	transcript, err := chatSvc.LoadTranscript(context.Background(), session.ID)
	require.NoError(t, err)
	require.Len(t, transcript, 2)
	assert.Equal(t, "a", transcript[0].Text)
}

func TestWidgetRejectsEmptyText(t *testing.T) {
	srv, chatSvc := setup(t, nil)
	session, err := chatSvc.CreateSession(context.Background(), "")
	require.NoError(t, err)
	conn := dial(t, srv, session.ID)
	read(t, conn)

	require.NoError(t, conn.WriteJSON(inboundMessage{Type: "message", Text: "   "}))
	rejected := read(t, conn)
	require.Equal(t, "rejected", rejected.Type)
	assert.Equal(t, "empty", decode[RejectedPayload](t, rejected).Reason)
}

func TestWidgetUnknownSession(t *testing.T) {
	srv, _ := setup(t, nil)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/missing"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body["error"], "not found")
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://pixelforge.studio"})

	req := httptest.NewRequest(http.MethodGet, "/ws/x", nil)
	assert.True(t, check(req))

	req.Header.Set("Origin", "https://pixelforge.studio")
	assert.True(t, check(req))

	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, check(req))
}
