package handler

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

	"github.com/clinicdesk-ai/booking-assistant/internal/engine"
	"github.com/clinicdesk-ai/booking-assistant/internal/model"
	"github.com/clinicdesk-ai/booking-assistant/internal/store"
	"github.com/clinicdesk-ai/booking-assistant/pkg/logger"
)

type stubAppointments struct {
	fail bool
}

func (s *stubAppointments) InsertAppointment(_ context.Context, a *model.Appointment) (string, error) {
	if s.fail {
		return "", errors.New("write concern error")
	}
	return "apt-1", nil
}

func (s *stubAppointments) AppendTurn(_ context.Context, _ *model.Turn) error { return nil }

func (s *stubAppointments) History(_ context.Context, _ string, _ int64) ([]model.Turn, error) {
	return nil, nil
}

func newChatServer(appointments *stubAppointments) *httptest.Server {
	required := []string{"email"}
	eng := engine.New(engine.Config{RequiredFields: required}, engine.Deps{
		Sessions:     store.NewMemory(nil),
		Appointments: appointments,
		Extractor:    engine.NewRuleExtractor(required),
		Logger:       logger.NewNop(),
	})

	r := chi.NewRouter()
	r.Post("/api/v1/chat", NewChatHandler(eng, logger.NewNop()).Chat)
	return httptest.NewServer(r)
}

func postChat(t *testing.T, server *httptest.Server, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(server.URL+"/api/v1/chat", "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func TestChatTurnOK(t *testing.T) {
	server := newChatServer(&stubAppointments{})
	defer server.Close()

	resp := postChat(t, server, model.ChatRequest{
		SessionKey: "sess-1",
		Message:    "my email is jane@example.com",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body model.ChatResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 1, body.Step)
	assert.Equal(t, 1, body.TotalSteps)
	assert.False(t, body.Done)
	assert.Contains(t, body.Reply, "Shall I book it?")
}

func TestChatInvalidBody(t *testing.T) {
	server := newChatServer(&stubAppointments{})
	defer server.Close()

	resp, err := http.Post(server.URL+"/api/v1/chat", "application/json",
		strings.NewReader("{not json"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestChatValidationError(t *testing.T) {
	server := newChatServer(&stubAppointments{})
	defer server.Close()

	resp := postChat(t, server, model.ChatRequest{
		SessionKey: strings.Repeat("k", 101),
		Message:    "hello",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "session_key", body["field"])
}

func TestChatPersistenceFailureReturnsBadGateway(t *testing.T) {
	appointments := &stubAppointments{}
	server := newChatServer(appointments)
	defer server.Close()

	resp := postChat(t, server, model.ChatRequest{SessionKey: "sess-1", Message: "jane@example.com"})
	resp.Body.Close()

	appointments.fail = true
	resp = postChat(t, server, model.ChatRequest{SessionKey: "sess-1", Message: "yes"})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	// Session survived the failure; the retry books successfully.
	appointments.fail = false
	resp = postChat(t, server, model.ChatRequest{SessionKey: "sess-1", Message: "yes"})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body model.ChatResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.Done)
	require.NotNil(t, body.Record)
	assert.Equal(t, "jane@example.com", body.Record.Fields["email"])
}
