package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicdesk-ai/booking-assistant/internal/config"
	"github.com/clinicdesk-ai/booking-assistant/internal/llm"
	"github.com/clinicdesk-ai/booking-assistant/pkg/logger"
)

type fakeLLM struct {
	content string
	err     error
}

func (f *fakeLLM) Complete(_ context.Context, _ *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &llm.CompletionResponse{Content: f.content}, nil
}

func (f *fakeLLM) Name() string { return "fake" }

func newDelegated(client llm.Client) *DelegatedExtractor {
	return NewDelegatedExtractor(client, config.DefaultRequiredFields, time.Second, logger.NewNop())
}

func TestDelegatedExtractorParsesStructuredReply(t *testing.T) {
	x := newDelegated(&fakeLLM{
		content: `{"data": {"name": "Jane Doe", "email": "jane@example.com"}, "nextPrompt": "What phone number can we reach you at?"}`,
	})

	got := x.Extract(context.Background(), map[string]string{}, "I'm Jane Doe, jane@example.com", nil)

	assert.Equal(t, map[string]string{
		"name":  "Jane Doe",
		"email": "jane@example.com",
	}, got.Fields)
	assert.Equal(t, "What phone number can we reach you at?", got.NextPrompt)
}

func TestDelegatedExtractorStripsCodeFences(t *testing.T) {
	x := newDelegated(&fakeLLM{
		content: "Sure! Here you go:\n```json\n{\"data\": {\"service\": \"cleaning\"}, \"nextPrompt\": \"What day works?\"}\n```",
	})

	got := x.Extract(context.Background(), map[string]string{}, "a cleaning", nil)

	assert.Equal(t, map[string]string{"service": "cleaning"}, got.Fields)
	assert.Equal(t, "What day works?", got.NextPrompt)
}

func TestDelegatedExtractorIgnoresUnknownFields(t *testing.T) {
	x := newDelegated(&fakeLLM{
		content: `{"data": {"name": "Jane", "favoriteColor": "blue", "email": ""}, "nextPrompt": "next"}`,
	})

	got := x.Extract(context.Background(), map[string]string{}, "hi", nil)

	assert.Equal(t, map[string]string{"name": "Jane"}, got.Fields)
}

func TestDelegatedExtractorFallsBackOnError(t *testing.T) {
	x := newDelegated(&fakeLLM{err: errors.New("upstream unavailable")})

	got := x.Extract(context.Background(), map[string]string{}, "hi", nil)

	require.NotNil(t, got.Fields)
	assert.Empty(t, got.Fields)
	assert.Equal(t, genericClarification, got.NextPrompt)
}

func TestDelegatedExtractorFallsBackOnTimeout(t *testing.T) {
	x := newDelegated(&fakeLLM{err: context.DeadlineExceeded})

	got := x.Extract(context.Background(), map[string]string{}, "hi", nil)

	assert.Empty(t, got.Fields)
	assert.Equal(t, genericClarification, got.NextPrompt)
}

func TestDelegatedExtractorFallsBackOnMalformedOutput(t *testing.T) {
	x := newDelegated(&fakeLLM{content: "I could not find any fields, sorry!"})

	got := x.Extract(context.Background(), map[string]string{}, "hi", nil)

	assert.Empty(t, got.Fields)
	assert.Equal(t, genericClarification, got.NextPrompt)
}
