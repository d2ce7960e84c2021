package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/readypath/assess-gateway/internal/models"
	"github.com/readypath/assess-gateway/internal/validate"
)

// defaultStallTimeout bounds the wait for the next upstream token. A stream
// that makes no progress within this interval is terminated instead of
// hanging the client indefinitely.
const defaultStallTimeout = 30 * time.Second

const injectionBlockedMessage = "Your message could not be processed. Please rephrase and try again."

// streamTimeoutNotice is appended to a stalled stream so the client can tell
// a timed-out response apart from a completed one.
const streamTimeoutNotice = "\n\n[Response timed out. Please try again.]"

// handleChat validates a conversation and streams the model's reply back as
// plain-text tokens. Validation and injection checks run before any
// upstream call is made.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	key := clientKey(r)

	if res := s.limiters.Chat.Check(r.Context(), key); !res.Allowed {
		respondRateLimited(w, res)
		return
	}

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if len(req.Messages) == 0 {
		respondError(w, http.StatusBadRequest, "No messages provided")
		return
	}

	if err := validate.Conversation(len(req.Messages)); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	messages := make([]models.Message, 0, len(req.Messages))
	for _, im := range req.Messages {
		msg, err := im.Normalize()
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid message format")
			return
		}

		if msg.Role == models.RoleUser {
			if err := validate.Message(msg.Content); err != nil {
				respondError(w, http.StatusBadRequest, err.Error())
				return
			}

			if matches := validate.DetectInjection(msg.Content); len(matches) > 0 {
				ids := make([]string, len(matches))
				for i, m := range matches {
					ids[i] = m.ID
				}
				slog.Warn("prompt injection blocked",
					"patterns", ids,
					"client", key,
					"request_id", middleware.GetReqID(r.Context()),
				)
				respondError(w, http.StatusBadRequest, injectionBlockedMessage)
				return
			}
		}

		messages = append(messages, msg)
	}

	s.streamResponse(w, r, messages)
}

// streamResponse forwards upstream tokens to the client as they arrive.
// Once the first byte is written the status is committed, so upstream
// failures mid-stream can only be logged and the stream ended.
func (s *Server) streamResponse(w http.ResponseWriter, r *http.Request, messages []models.Message) {
	ctx := r.Context()
	requestID := middleware.GetReqID(ctx)

	chunks, err := s.provider.Stream(ctx, messages)
	if err != nil {
		slog.Error("failed to start completion stream", "error", err, "request_id", requestID)
		respondError(w, http.StatusInternalServerError, genericServerError)
		return
	}

	flusher, canFlush := w.(http.Flusher)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	stall := time.NewTimer(s.stallTimeout)
	defer stall.Stop()

	for {
		select {
		case <-ctx.Done():
			// Client went away; the provider observes the same context and
			// stops consuming upstream tokens.
			return

		case <-stall.C:
			slog.Warn("completion stream stalled", "request_id", requestID)
			w.Write([]byte(streamTimeoutNotice))
			if canFlush {
				flusher.Flush()
			}
			return

		case chunk, ok := <-chunks:
			if !ok {
				return
			}
			if chunk.Err != nil {
				slog.Error("completion stream failed", "error", chunk.Err, "request_id", requestID)
				return
			}
			if chunk.Done {
				return
			}

			if _, err := w.Write([]byte(chunk.Content)); err != nil {
				return
			}
			if canFlush {
				flusher.Flush()
			}

			if !stall.Stop() {
				select {
				case <-stall.C:
				default:
				}
			}
			stall.Reset(s.stallTimeout)
		}
	}
}
