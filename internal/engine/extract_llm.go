package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/clinicdesk-ai/booking-assistant/internal/llm"
	"github.com/clinicdesk-ai/booking-assistant/pkg/logger"
	"github.com/clinicdesk-ai/booking-assistant/pkg/metrics"
)

// DelegatedExtractor asks a completion model to pull field values from the
// message. Any error, timeout or malformed reply degrades to an empty
// extraction with a generic clarification so the conversation stays alive.
type DelegatedExtractor struct {
	client   llm.Client
	required []string
	timeout  time.Duration
	logger   *logger.Logger
}

// NewDelegatedExtractor creates an LLM-backed extractor.
func NewDelegatedExtractor(client llm.Client, required []string, timeout time.Duration, log *logger.Logger) *DelegatedExtractor {
	if timeout <= 0 {
		timeout = 25 * time.Second
	}
	return &DelegatedExtractor{
		client:   client,
		required: required,
		timeout:  timeout,
		logger:   log,
	}
}

// Extract sends one completion call with a fixed wall-clock budget.
func (x *DelegatedExtractor) Extract(ctx context.Context, collected map[string]string, message string, contextSnippets []string) Extraction {
	ctx, cancel := context.WithTimeout(ctx, x.timeout)
	defer cancel()

	start := time.Now()
	resp, err := x.client.Complete(ctx, &llm.CompletionRequest{
		Messages: []llm.ChatMessage{
			{Role: "user", Content: x.buildPrompt(collected, message, contextSnippets)},
		},
		MaxTokens:   512,
		Temperature: 0,
	})
	if err != nil {
		reason := "error"
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "timeout"
		}
		metrics.ExtractionFailuresTotal.WithLabelValues(reason).Inc()
		metrics.RecordCompletion(x.client.Name(), "error", time.Since(start).Seconds())
		x.logger.Warn("delegated extraction failed, using fallback", zap.Error(err))
		return fallbackExtraction()
	}
	metrics.RecordCompletion(x.client.Name(), "success", time.Since(start).Seconds())

	var parsed struct {
		Data       map[string]string `json:"data"`
		NextPrompt string            `json:"nextPrompt"`
	}
	if err := json.Unmarshal([]byte(jsonBody(resp.Content)), &parsed); err != nil {
		metrics.ExtractionFailuresTotal.WithLabelValues("malformed").Inc()
		x.logger.Warn("delegated extraction returned malformed output", zap.Error(err))
		return fallbackExtraction()
	}

	// Keep only configured fields with non-empty values.
	fields := make(map[string]string)
	for _, f := range x.required {
		if v := strings.TrimSpace(parsed.Data[f]); v != "" {
			fields[f] = v
		}
	}

	return Extraction{Fields: fields, NextPrompt: strings.TrimSpace(parsed.NextPrompt)}
}

func (x *DelegatedExtractor) buildPrompt(collected map[string]string, message string, contextSnippets []string) string {
	collectedJSON, _ := json.Marshal(collected)

	var b strings.Builder
	b.WriteString("You are a medical appointment booking assistant collecting these fields: ")
	b.WriteString(strings.Join(x.required, ", "))
	b.WriteString(".\nAlready collected: ")
	b.Write(collectedJSON)
	b.WriteString("\n")
	if len(contextSnippets) > 0 {
		b.WriteString("Relevant earlier conversation:\n")
		for _, s := range contextSnippets {
			fmt.Fprintf(&b, "- %s\n", s)
		}
	}
	b.WriteString("Extract any field values from the user's message below. Respond with ONLY a JSON object of the form ")
	b.WriteString(`{"data": {"<field>": "<value>"}, "nextPrompt": "<question asking for the next missing field>"}.`)
	b.WriteString("\nUser message: ")
	b.WriteString(message)
	return b.String()
}

// jsonBody strips code fences and surrounding prose from a model reply,
// keeping the outermost JSON object.
func jsonBody(content string) string {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return content
	}
	return content[start : end+1]
}

func fallbackExtraction() Extraction {
	return Extraction{Fields: map[string]string{}, NextPrompt: genericClarification}
}
