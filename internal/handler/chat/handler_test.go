package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelforge/studio/backend/internal/analysis/fallback"
	"github.com/pixelforge/studio/backend/internal/model/chat"
	"github.com/pixelforge/studio/backend/internal/model/persona"
	chatservice "github.com/pixelforge/studio/backend/internal/service/chat"
)

func setupRouter(t *testing.T) (*chi.Mux, *chatservice.Service) {
	t.Helper()
	resolver := chatservice.NewResolver(nil, fallback.Default(), nil)
	chatSvc, err := chatservice.NewService(persona.NewMemoryStore(persona.Seed()), resolver, 16, "")
	require.NoError(t, err)

	r := chi.NewRouter()
	New(chatSvc).RegisterRoutes(r)
	return r, chatSvc
}

func do(r http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func createSession(t *testing.T, r http.Handler) chat.Session {
	t.Helper()
	resp := do(r, http.MethodPost, "/session", map[string]string{"personaId": persona.DefaultID})
	require.Equal(t, http.StatusCreated, resp.Code)

	var session chat.Session
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &session))
	return session
}

func TestCreateSessionValidPersona(t *testing.T) {
	r, _ := setupRouter(t)
	session := createSession(t, r)
	assert.NotEmpty(t, session.ID)
	assert.Equal(t, persona.DefaultID, session.PersonaID)
}

func TestCreateSessionDefaultsPersona(t *testing.T) {
	r, _ := setupRouter(t)

	resp := do(r, http.MethodPost, "/session", nil)
	require.Equal(t, http.StatusCreated, resp.Code)
	assert.Contains(t, resp.Body.String(), persona.DefaultID)
}

func TestCreateSessionInvalidPersona(t *testing.T) {
	r, _ := setupRouter(t)

	resp := do(r, http.MethodPost, "/session", map[string]string{"personaId": "non-existent"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestCreateSessionInvalidBody(t *testing.T) {
	r, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/session", strings.NewReader("{"))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestOpenReturnsGreetingOnce(t *testing.T) {
	r, _ := setupRouter(t)
	session := createSession(t, r)

	resp := do(r, http.MethodPost, "/session/"+session.ID+"/open", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var opened sessionResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &opened))
	require.NotNil(t, opened.Greeting)
	assert.True(t, opened.Session.Open)
	assert.Equal(t, chat.SenderBot, opened.Greeting.Sender)

	resp = do(r, http.MethodPost, "/session/"+session.ID+"/close", nil)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = do(r, http.MethodPost, "/session/"+session.ID+"/open", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var reopened sessionResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &reopened))
	assert.Nil(t, reopened.Greeting)
}

func TestSubmitAndTranscript(t *testing.T) {
	r, _ := setupRouter(t)
	session := createSession(t, r)

	resp := do(r, http.MethodPost, "/session/"+session.ID+"/messages", map[string]string{"text": "What is your pricing?"})
	require.Equal(t, http.StatusOK, resp.Code)
	var reply chat.Message
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &reply))
	assert.Equal(t, chat.SenderBot, reply.Sender)
	assert.True(t, strings.HasPrefix(reply.Text, "Our pricing varies"))

	resp = do(r, http.MethodGet, "/session/"+session.ID+"/messages", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var transcript transcriptResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &transcript))
	require.Len(t, transcript.Messages, 2)
	assert.Equal(t, chat.SenderUser, transcript.Messages[0].Sender)
	assert.Equal(t, reply.ID, transcript.Messages[1].ID)
	assert.False(t, transcript.Resolving)

	resp = do(r, http.MethodGet, "/session/"+session.ID, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var detail sessionResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &detail))
	assert.Equal(t, 2, detail.Session.Messages)
	assert.Len(t, detail.Transcript, 2)
}

func TestSubmitRejectsBlankText(t *testing.T) {
	r, _ := setupRouter(t)
	session := createSession(t, r)

	resp := do(r, http.MethodPost, "/session/"+session.ID+"/messages", map[string]string{"text": "   "})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = do(r, http.MethodGet, "/session/"+session.ID+"/messages", nil)
	var transcript transcriptResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &transcript))
	assert.Empty(t, transcript.Messages)
}

func TestUnknownSession(t *testing.T) {
	r, _ := setupRouter(t)

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/session/missing", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodPost, "/session/missing/messages", map[string]string{"text": "hi"}).Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodDelete, "/session/missing", nil).Code)
}

func TestEndSession(t *testing.T) {
	r, chatSvc := setupRouter(t)
	session := createSession(t, r)
	live, err := chatSvc.Session(session.ID)
	require.NoError(t, err)

	resp := do(r, http.MethodDelete, "/session/"+session.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.Code)

	_, err = live.Submit(context.Background(), "hello?")
	assert.Equal(t, http.StatusGone, StatusFor(err))
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/session/"+session.ID, nil).Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusConflict, StatusFor(chatservice.ErrResolutionInFlight))
	assert.Equal(t, http.StatusBadRequest, StatusFor(chatservice.ErrEmptyMessage))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(errors.New("boom")))
}
