package stream

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/z-scout/backend/internal/handler/invocation"
	"github.com/zhouzirui/z-scout/backend/internal/service/agent"
	"github.com/zhouzirui/z-scout/backend/pkg/utils"
)

// Handler manages streaming agent steps via Server-Sent Events
type Handler struct {
	invoker invocation.Invoker
}

// New creates a new stream handler
func New(invoker invocation.Invoker) *Handler {
	return &Handler{invoker: invoker}
}

// RegisterRoutes registers the streaming invocation endpoint
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/invocations/stream", h.handleStream)
}

// StreamResponse represents a streaming response chunk
type StreamResponse struct {
	Event     string                  `json:"event"`
	SessionID string                  `json:"sessionId,omitempty"`
	Step      *agent.Step             `json:"step,omitempty"`
	Result    *agent.InvocationResult `json:"result,omitempty"`
	Finished  bool                    `json:"finished,omitempty"`
	Error     string                  `json:"error,omitempty"`
}

// handleStream validates the payload up front so bad requests still get a
// plain JSON 400, then emits start, one step per executed node, and a final
// result or error event.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	payload, err := invocation.DecodePayload(r)
	if err != nil {
		utils.RespondJSON(w, http.StatusBadRequest, agent.InvocationResult{Error: err.Error()})
		return
	}

	req, err := agent.ParsePayload(payload)
	if err != nil {
		utils.RespondJSON(w, http.StatusBadRequest, agent.InvocationResult{Error: err.Error()})
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	utils.SetupSSEHeaders(w)
	sessionID := req.Session.Key()

	send := func(resp StreamResponse) {
		if err := utils.SendSSEEvent(w, flusher, resp.Event, resp); err != nil {
			log.Printf("[stream] %v", err)
		}
	}

	send(StreamResponse{Event: "start", SessionID: sessionID})

	result := h.invoker.Invoke(r.Context(), payload, func(step agent.Step) {
		send(StreamResponse{Event: "step", SessionID: sessionID, Step: &step})
	})

	if err := result.Err(); err != nil {
		log.Printf("[stream] invocation failed session=%s: %v", sessionID, err)
		send(StreamResponse{
			Event:     "error",
			SessionID: sessionID,
			Result:    &result,
			Finished:  true,
			Error:     result.Error,
		})
		return
	}

	send(StreamResponse{
		Event:     "result",
		SessionID: sessionID,
		Result:    &result,
		Finished:  true,
	})
}
