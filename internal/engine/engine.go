// Package engine implements the slot-filling session engine that collects
// appointment fields across chat turns and books once confirmed.
package engine

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clinicdesk-ai/booking-assistant/internal/model"
	"github.com/clinicdesk-ai/booking-assistant/pkg/logger"
	"github.com/clinicdesk-ai/booking-assistant/pkg/metrics"
)

const (
	maxSessionKeyLen = 100
	maxMessageLen    = 4000
)

// SessionStore is the injectable session-state abstraction.
type SessionStore interface {
	// Update runs fn with exclusive access to the session for key, creating
	// it when absent. Returning remove=true deletes the session.
	Update(ctx context.Context, key string, fn func(s *model.Session, created bool) (remove bool, err error)) error
	Sweep(cutoff time.Time) int
	Count() int
}

// AppointmentStore persists confirmed bookings and conversation turns.
type AppointmentStore interface {
	InsertAppointment(ctx context.Context, a *model.Appointment) (string, error)
	AppendTurn(ctx context.Context, t *model.Turn) error
	History(ctx context.Context, sessionKey string, limit int64) ([]model.Turn, error)
}

// EventPublisher announces terminal session outcomes.
type EventPublisher interface {
	PublishBooking(ctx context.Context, ev *model.BookingEvent) error
	PublishCancellation(ctx context.Context, ev *model.BookingEvent) error
}

// Enricher supplies optional semantic context. May be nil.
type Enricher interface {
	Remember(ctx context.Context, id, text string, meta map[string]string)
	Recall(ctx context.Context, text string, topK int) []string
}

// Config holds engine tunables.
type Config struct {
	RequiredFields []string
	IdleTTL        time.Duration
	SweepInterval  time.Duration
}

// Deps are the engine's collaborators. Sessions, Appointments and Extractor
// are required; Events, Enricher and Clock are optional.
type Deps struct {
	Sessions     SessionStore
	Appointments AppointmentStore
	Events       EventPublisher
	Extractor    Extractor
	Enricher     Enricher
	Clock        Clock
	Logger       *logger.Logger
}

// Engine drives the slot-filling conversation.
type Engine struct {
	sessions     SessionStore
	appointments AppointmentStore
	events       EventPublisher
	extractor    Extractor
	enricher     Enricher
	clock        Clock
	logger       *logger.Logger

	required   []string
	idleTTL    time.Duration
	sweepEvery time.Duration
}

// New creates a session engine.
func New(cfg Config, deps Deps) *Engine {
	if deps.Clock == nil {
		deps.Clock = realClock{}
	}
	if deps.Logger == nil {
		deps.Logger = logger.Global()
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 15 * time.Minute
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 60 * time.Second
	}

	return &Engine{
		sessions:     deps.Sessions,
		appointments: deps.Appointments,
		events:       deps.Events,
		extractor:    deps.Extractor,
		enricher:     deps.Enricher,
		clock:        deps.Clock,
		logger:       deps.Logger,
		required:     cfg.RequiredFields,
		idleTTL:      cfg.IdleTTL,
		sweepEvery:   cfg.SweepInterval,
	}
}

// HandleTurn processes one chat turn for the given session. It is safe for
// concurrent use; turns for the same key serialize on the session entry.
func (e *Engine) HandleTurn(ctx context.Context, sessionKey, message string) (*model.ChatResponse, error) {
	if err := checkInputs(sessionKey, message); err != nil {
		return nil, err
	}

	var resp *model.ChatResponse
	err := e.sessions.Update(ctx, sessionKey, func(s *model.Session, created bool) (bool, error) {
		if created {
			e.logger.Info("session created", zap.String("session_key", sessionKey))
		}
		s.LastActive = e.clock.Now()

		if len(s.Missing(e.required)) == 0 {
			return e.confirmTurn(ctx, s, message, &resp)
		}
		e.collectTurn(ctx, s, message, &resp)
		return false, nil
	})
	if err != nil {
		return nil, err
	}

	e.recordTurn(ctx, sessionKey, model.RoleUser, message)
	e.recordTurn(ctx, sessionKey, model.RoleAssistant, resp.Reply)
	if e.enricher != nil {
		e.enricher.Remember(ctx, uuid.Must(uuid.NewV7()).String(), message,
			map[string]string{"session_key": sessionKey})
	}
	metrics.SessionsActive.Set(float64(e.sessions.Count()))

	return resp, nil
}

// confirmTurn handles a session whose fields are all present: book on yes,
// cancel on no, otherwise re-ask without mutating collected state.
func (e *Engine) confirmTurn(ctx context.Context, s *model.Session, message string, resp **model.ChatResponse) (bool, error) {
	total := len(e.required)

	switch {
	case affirmative.MatchString(message):
		record := &model.Appointment{
			SessionKey: s.Key,
			Fields:     cloneFields(s.Collected),
			Status:     model.StatusBooked,
			Action:     model.ActionCreate,
			CreatedAt:  e.clock.Now(),
		}

		id, err := e.appointments.InsertAppointment(ctx, record)
		if err != nil {
			metrics.RecordTurn("persistence_error")
			e.logger.Error("booking insert failed, session preserved",
				zap.String("session_key", s.Key), zap.Error(err))
			return false, &PersistenceError{Err: err}
		}
		record.ID = id

		e.publish(ctx, model.EventTypeBooked, s.Key, record)
		metrics.BookingsTotal.Inc()
		metrics.RecordTurn("booked")
		e.logger.Info("appointment booked",
			zap.String("session_key", s.Key), zap.String("record_id", id))

		*resp = &model.ChatResponse{
			Reply:      Confirm(record, e.required),
			Step:       total,
			TotalSteps: total,
			Done:       true,
			Record:     record,
		}
		return true, nil

	case negative.MatchString(message):
		e.publish(ctx, model.EventTypeCancelled, s.Key, nil)
		metrics.CancellationsTotal.Inc()
		metrics.RecordTurn("cancelled")
		e.logger.Info("booking cancelled", zap.String("session_key", s.Key))

		*resp = &model.ChatResponse{
			Reply:      cancellationText,
			Step:       total,
			TotalSteps: total,
			Done:       false,
		}
		return true, nil

	default:
		metrics.RecordTurn("reconfirm")
		*resp = &model.ChatResponse{
			Reply:      confirmQuestion(s.Collected, e.required),
			Step:       total,
			TotalSteps: total,
			Done:       false,
		}
		return false, nil
	}
}

// collectTurn extracts field values from the message and merges them.
func (e *Engine) collectTurn(ctx context.Context, s *model.Session, message string, resp **model.ChatResponse) {
	extraction := e.extractor.Extract(ctx, cloneFields(s.Collected), message, e.contextFor(ctx, s.Key, message))
	s.Merge(extraction.Fields)

	missing := s.Missing(e.required)
	var reply string
	switch {
	case len(missing) == 0:
		if errs := Validate(s.Collected); len(errs) > 0 {
			// Drop invalid values so they are collected again.
			for _, fe := range errs {
				delete(s.Collected, fe.Field)
			}
			missing = s.Missing(e.required)
			reply = "A couple of details need fixing: " + joinReasons(errs) + " " + promptFor(missing[0])
		} else {
			reply = confirmQuestion(s.Collected, e.required)
		}
	default:
		reply = extraction.NextPrompt
		if reply == "" {
			reply = promptFor(missing[0])
		}
	}

	metrics.RecordTurn("collecting")
	*resp = &model.ChatResponse{
		Reply:      reply,
		Step:       len(e.required) - len(missing),
		TotalSteps: len(e.required),
		Done:       false,
	}
}

// contextFor gathers optional enrichment: recent persisted turns plus
// semantically similar past messages. Failures yield empty context.
func (e *Engine) contextFor(ctx context.Context, sessionKey, message string) []string {
	var snippets []string
	if e.appointments != nil {
		if turns, err := e.appointments.History(ctx, sessionKey, 6); err == nil {
			for _, t := range turns {
				snippets = append(snippets, string(t.Role)+": "+t.Content)
			}
		}
	}
	if e.enricher != nil {
		snippets = append(snippets, e.enricher.Recall(ctx, message, 3)...)
	}
	return snippets
}

func (e *Engine) recordTurn(ctx context.Context, sessionKey string, role model.Role, content string) {
	if e.appointments == nil {
		return
	}
	err := e.appointments.AppendTurn(ctx, &model.Turn{
		SessionKey: sessionKey,
		Role:       role,
		Content:    content,
		CreatedAt:  e.clock.Now(),
	})
	if err != nil {
		e.logger.Warn("failed to persist turn",
			zap.String("session_key", sessionKey), zap.Error(err))
	}
}

func (e *Engine) publish(ctx context.Context, eventType model.BookingEventType, sessionKey string, record *model.Appointment) {
	if e.events == nil {
		return
	}

	ev := &model.BookingEvent{
		ID:         uuid.Must(uuid.NewV7()).String(),
		SessionKey: sessionKey,
		Type:       eventType,
		CreatedAt:  e.clock.Now(),
	}
	if record != nil {
		ev.RecordID = record.ID
		ev.Fields = record.Fields
	}

	var err error
	if eventType == model.EventTypeBooked {
		err = e.events.PublishBooking(ctx, ev)
	} else {
		err = e.events.PublishCancellation(ctx, ev)
	}
	if err != nil {
		e.logger.Warn("failed to publish booking event",
			zap.String("session_key", sessionKey), zap.Error(err))
	}
}

// StartSweeper runs the idle sweep until ctx is cancelled.
func (e *Engine) StartSweeper(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(e.sweepEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				e.SweepOnce()
			}
		}
	}()
}

// SweepOnce removes sessions idle longer than the TTL and returns the count.
func (e *Engine) SweepOnce() int {
	removed := e.sessions.Sweep(e.clock.Now().Add(-e.idleTTL))
	if removed > 0 {
		metrics.SessionsSweptTotal.Add(float64(removed))
		e.logger.Info("idle sessions swept", zap.Int("removed", removed))
	}
	metrics.SessionsActive.Set(float64(e.sessions.Count()))
	return removed
}

func checkInputs(sessionKey, message string) error {
	if sessionKey == "" {
		return &ValidationError{Field: "session_key", Reason: "must not be empty"}
	}
	if utf8.RuneCountInString(sessionKey) > maxSessionKeyLen {
		return &ValidationError{Field: "session_key", Reason: "must be at most 100 characters"}
	}
	if message == "" {
		return &ValidationError{Field: "message", Reason: "must not be empty"}
	}
	if utf8.RuneCountInString(message) > maxMessageLen {
		return &ValidationError{Field: "message", Reason: "must be at most 4000 characters"}
	}
	return nil
}

func cloneFields(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func joinReasons(errs []FieldError) string {
	reasons := make([]string, len(errs))
	for i, fe := range errs {
		reasons[i] = fe.Reason
	}
	return strings.Join(reasons, "; ") + "."
}
