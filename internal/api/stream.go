package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"radzz.ai/chat-orchestrator/internal/core"
)

// sseWriter defers the event-stream headers until the first event, so a send
// refused up front can still answer with a plain JSON error and status.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

func (s *sseWriter) send(event string, v any) {
	if !s.started {
		h := s.w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		s.w.WriteHeader(http.StatusOK)
		s.started = true
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data)
	s.flusher.Flush()
}

func (h *APIHandler) streamMessage(ctx context.Context, w http.ResponseWriter, r *http.Request, req PostMessageRequest) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeMessage(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}
	sse := &sseWriter{w: w, flusher: flusher}

	res, err := h.chatService.Send(ctx, core.SendRequest{
		Text:       req.Text,
		Attachment: req.Attachment,
		Observer: func(e core.Event) {
			sse.send(string(e.Kind), e)
		},
	})

	switch {
	case err != nil && !sse.started:
		h.writeError(w, r, err)
	case err != nil:
		h.log.Warn("stream_send_failed", zap.Error(err))
		sse.send("error", errorBody(err))
	case !res.Decision.Admitted:
		h.writeError(w, r, res.Decision.Reason)
	default:
		sse.send("done", newPostMessageResponse(res))
	}
}
