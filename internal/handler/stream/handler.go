package stream

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	chatHandler "github.com/pixelforge/studio/backend/internal/handler/chat"
	"github.com/pixelforge/studio/backend/internal/model/chat"
	chatService "github.com/pixelforge/studio/backend/internal/service/chat"
	"github.com/pixelforge/studio/backend/pkg/utils"
)

// Handler streams one submit as Server-Sent Events: the echoed user message, a typing
// indicator while the reply resolves, the bot message and an end marker.
type Handler struct {
	chatSvc *chatService.Service
}

func New(chatSvc *chatService.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// StreamResponse is the data payload of every event.
type StreamResponse struct {
	SessionID string        `json:"sessionId"`
	Message   *chat.Message `json:"message,omitempty"`
	Resolving *bool         `json:"resolving,omitempty"`
	Finished  bool          `json:"finished,omitempty"`
	Error     string        `json:"error,omitempty"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stream/{sessionID}", h.handleStream)
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	userMessage := r.URL.Query().Get("message")

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	if _, err := h.chatSvc.Session(sessionID); err != nil {
		utils.RespondError(w, chatHandler.StatusFor(err), err.Error())
		return
	}

	// Headers are only committed once the submit is accepted, so rejections stay plain JSON.
	streaming := false
	send := func(event string, payload StreamResponse) {
		if err := utils.SendSSEEvent(w, flusher, event, payload); err != nil {
			log.Debug().Err(err).Str("session", sessionID).Str("event", event).Msg("sse write failed")
		}
	}

	reply, err := h.chatSvc.Submit(r.Context(), sessionID, userMessage, chatService.OnUserMessage(func(msg chat.Message) {
		utils.SetupSSEHeaders(w)
		w.WriteHeader(http.StatusOK)
		streaming = true

		send("message", StreamResponse{SessionID: sessionID, Message: &msg})
		send("typing", StreamResponse{SessionID: sessionID, Resolving: boolPtr(true)})
	}))
	if err != nil {
		if !streaming {
			utils.RespondError(w, chatHandler.StatusFor(err), err.Error())
			return
		}
		log.Warn().Err(err).Str("session", sessionID).Msg("stream ended before reply")
		send("error", StreamResponse{SessionID: sessionID, Error: err.Error()})
		return
	}

	send("typing", StreamResponse{SessionID: sessionID, Resolving: boolPtr(false)})
	send("message", StreamResponse{SessionID: sessionID, Message: &reply})
	send("end", StreamResponse{SessionID: sessionID, Finished: true})
}

func boolPtr(v bool) *bool {
	return &v
}
