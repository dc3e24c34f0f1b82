package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// maxKeyPeekBytes bounds how much of a request body the limiter reads when
// looking for a session key.
const maxKeyPeekBytes = 1 << 16

// RateLimit creates rate limiting middleware keyed by session when the
// caller identifies one, otherwise by IP. The session key is taken from the
// X-Session-Key header, falling back to the session_key field of a JSON
// POST body. Rejected callers get a 429.
func RateLimit(requestLimit int, windowLength time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		requestLimit,
		windowLength,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if sessionKey := sessionKeyFor(r); sessionKey != "" {
				return "session:" + sessionKey, nil
			}
			return "ip:" + r.RemoteAddr, nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "60")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate limit exceeded","retry_after":60}`))
		}),
	)
}

// sessionKeyFor extracts the caller's session key from the header or, for
// JSON POSTs, from the body. The consumed body bytes are replayed so the
// handler still sees the full request.
func sessionKeyFor(r *http.Request) string {
	if key := r.Header.Get("X-Session-Key"); key != "" {
		return key
	}
	if r.Method != http.MethodPost || r.Body == nil {
		return ""
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxKeyPeekBytes))
	if err != nil {
		return ""
	}
	rest := r.Body
	r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(body), rest))

	var payload struct {
		SessionKey string `json:"session_key"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return payload.SessionKey
}
