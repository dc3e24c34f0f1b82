package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLimitedEcho(t *testing.T, limit int) http.Handler {
	echo := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		w.Write(body)
	})
	return RateLimit(limit, time.Minute)(echo)
}

func postChatBody(h http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimitKeysOnBodySessionKey(t *testing.T) {
	h := newLimitedEcho(t, 1)

	first := postChatBody(h, `{"session_key":"sess-1","message":"hi"}`)
	assert.Equal(t, http.StatusOK, first.Code)

	second := postChatBody(h, `{"session_key":"sess-1","message":"hi"}`)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "60", second.Header().Get("Retry-After"))

	// A different session from the same address has its own budget.
	third := postChatBody(h, `{"session_key":"sess-2","message":"hi"}`)
	assert.Equal(t, http.StatusOK, third.Code)
}

func TestRateLimitLeavesBodyReadable(t *testing.T) {
	h := newLimitedEcho(t, 10)

	body := `{"session_key":"sess-1","message":"hello there"}`
	rec := postChatBody(h, body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, body, rec.Body.String())
}

func TestRateLimitHeaderTakesPrecedence(t *testing.T) {
	h := newLimitedEcho(t, 1)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat",
		strings.NewReader(`{"session_key":"sess-1"}`))
	req.Header.Set("X-Session-Key", "other-session")
	req.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// The header consumed other-session's budget, not sess-1's.
	rec = postChatBody(h, `{"session_key":"sess-1"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitFallsBackToIP(t *testing.T) {
	h := newLimitedEcho(t, 1)

	first := postChatBody(h, `not json`)
	assert.Equal(t, http.StatusOK, first.Code)

	second := postChatBody(h, `not json`)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}
