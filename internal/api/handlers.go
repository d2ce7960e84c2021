package api

import (
	"encoding/json"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/readypath/assess-gateway/internal/ratelimit"
)

// genericServerError is the only message a client sees for upstream or
// unknown failures. Raw error text never crosses the trust boundary.
const genericServerError = "An error occurred processing your request"

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}

func retryAfterSeconds(res ratelimit.Result) int {
	seconds := int(math.Ceil(res.RetryAfter.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	return seconds
}

// respondRateLimited writes a 429 with a Retry-After hint in whole seconds
func respondRateLimited(w http.ResponseWriter, res ratelimit.Result) {
	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(res)))
	respondError(w, http.StatusTooManyRequests,
		"Too many requests. Please wait a moment before trying again.")
}

// clientKey identifies the requesting client for rate limiting. RealIP
// middleware has already resolved proxy headers into RemoteAddr; a random
// key is the fallback so an unparseable address never collapses all
// clients onto one counter.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return uuid.NewString()
	}
	return host
}

// Health handler

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":   "healthy",
		"provider": s.provider.Name(),
		"time":     time.Now().UTC().Format(time.RFC3339),
	})
}

// handleGetScript exposes the scripted question list so the client can
// render progress. The system prompt itself is never served.
func (s *Server) handleGetScript(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"questions": s.script.Questions(),
		"catalog":   s.script.Catalog(),
	})
}
