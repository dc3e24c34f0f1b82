package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicdesk-ai/booking-assistant/internal/config"
	"github.com/clinicdesk-ai/booking-assistant/internal/model"
	"github.com/clinicdesk-ai/booking-assistant/internal/store"
	"github.com/clinicdesk-ai/booking-assistant/pkg/logger"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeAppointments struct {
	mu       sync.Mutex
	records  []*model.Appointment
	turns    []*model.Turn
	failNext bool
}

func (f *fakeAppointments) InsertAppointment(_ context.Context, a *model.Appointment) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return "", errors.New("connection reset")
	}
	a.ID = "apt-1"
	f.records = append(f.records, a)
	return a.ID, nil
}

func (f *fakeAppointments) AppendTurn(_ context.Context, t *model.Turn) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.turns = append(f.turns, t)
	return nil
}

func (f *fakeAppointments) History(_ context.Context, _ string, _ int64) ([]model.Turn, error) {
	return nil, nil
}

type fakeEvents struct {
	mu     sync.Mutex
	events []*model.BookingEvent
}

func (f *fakeEvents) PublishBooking(_ context.Context, ev *model.BookingEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeEvents) PublishCancellation(_ context.Context, ev *model.BookingEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

type testEnv struct {
	engine       *Engine
	sessions     *store.Memory
	appointments *fakeAppointments
	events       *fakeEvents
	clock        *fakeClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	clock := newFakeClock()
	sessions := store.NewMemory(clock.Now)
	appointments := &fakeAppointments{}
	events := &fakeEvents{}

	eng := New(Config{
		RequiredFields: config.DefaultRequiredFields,
		IdleTTL:        15 * time.Minute,
		SweepInterval:  time.Minute,
	}, Deps{
		Sessions:     sessions,
		Appointments: appointments,
		Events:       events,
		Extractor:    NewRuleExtractor(config.DefaultRequiredFields),
		Clock:        clock,
		Logger:       logger.NewNop(),
	})

	return &testEnv{
		engine:       eng,
		sessions:     sessions,
		appointments: appointments,
		events:       events,
		clock:        clock,
	}
}

func (env *testEnv) fillAllFields(t *testing.T, key string) *model.ChatResponse {
	t.Helper()
	ctx := context.Background()

	var resp *model.ChatResponse
	var err error
	for _, msg := range []string{
		"My name is Jane Doe, email jane@example.com",
		"You can reach me at 555-123-4567",
		"I'd like to see Dr. Smith for a checkup",
		"Can I come in on Friday at 3:00 pm",
	} {
		resp, err = env.engine.HandleTurn(ctx, key, msg)
		require.NoError(t, err)
	}
	return resp
}

func TestHandleTurnExtractsMultipleFields(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.engine.HandleTurn(context.Background(), "sess-1",
		"My name is Jane Doe, email jane@example.com")
	require.NoError(t, err)

	assert.Equal(t, 2, resp.Step)
	assert.Equal(t, 7, resp.TotalSteps)
	assert.False(t, resp.Done)
	assert.Contains(t, resp.Reply, "phone")
}

func TestHandleTurnFullBookingFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	resp := env.fillAllFields(t, "sess-1")

	// All fields present: awaiting confirmation, not done yet.
	assert.False(t, resp.Done)
	assert.Equal(t, 7, resp.Step)
	assert.Contains(t, resp.Reply, "Shall I book it?")
	assert.Contains(t, resp.Reply, "Jane Doe")

	resp, err := env.engine.HandleTurn(ctx, "sess-1", "yes")
	require.NoError(t, err)

	assert.True(t, resp.Done)
	require.NotNil(t, resp.Record)
	assert.Equal(t, model.StatusBooked, resp.Record.Status)
	assert.Len(t, resp.Record.Fields, 7)
	assert.Equal(t, "Jane Doe", resp.Record.Fields["name"])
	assert.Equal(t, "jane@example.com", resp.Record.Fields["email"])

	// Confirmation text carries every field value verbatim.
	for _, v := range resp.Record.Fields {
		assert.Contains(t, resp.Reply, v)
	}

	// Record persisted and event published.
	require.Len(t, env.appointments.records, 1)
	require.Len(t, env.events.events, 1)
	assert.Equal(t, model.EventTypeBooked, env.events.events[0].Type)

	// Session destroyed: the next message starts a fresh session.
	assert.Equal(t, 0, env.sessions.Count())
	resp, err = env.engine.HandleTurn(ctx, "sess-1", "hello")
	require.NoError(t, err)
	assert.Equal(t, 0, resp.Step)
	assert.False(t, resp.Done)
}

func TestHandleTurnAmbiguousConfirmationReasks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.fillAllFields(t, "sess-1")

	first, err := env.engine.HandleTurn(ctx, "sess-1", "maybe")
	require.NoError(t, err)
	assert.False(t, first.Done)
	assert.Contains(t, first.Reply, "Shall I book it?")

	// Re-asking must not mutate state: the same reply comes back again.
	second, err := env.engine.HandleTurn(ctx, "sess-1", "maybe")
	require.NoError(t, err)
	assert.Equal(t, first.Reply, second.Reply)
	assert.Equal(t, first.Step, second.Step)
	assert.Empty(t, env.appointments.records)
}

func TestHandleTurnCancellation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.fillAllFields(t, "sess-1")

	resp, err := env.engine.HandleTurn(ctx, "sess-1", "no")
	require.NoError(t, err)
	assert.False(t, resp.Done)
	assert.Nil(t, resp.Record)
	assert.Empty(t, env.appointments.records)
	require.Len(t, env.events.events, 1)
	assert.Equal(t, model.EventTypeCancelled, env.events.events[0].Type)
	assert.Equal(t, 0, env.sessions.Count())
}

func TestHandleTurnRepeatedMessageIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	msg := "My name is Jane Doe, email jane@example.com"
	first, err := env.engine.HandleTurn(ctx, "sess-1", msg)
	require.NoError(t, err)

	second, err := env.engine.HandleTurn(ctx, "sess-1", msg)
	require.NoError(t, err)

	assert.Equal(t, first.Step, second.Step)
	assert.Equal(t, first.Reply, second.Reply)
}

func TestHandleTurnPersistenceFailurePreservesSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.fillAllFields(t, "sess-1")

	env.appointments.failNext = true
	_, err := env.engine.HandleTurn(ctx, "sess-1", "yes")
	require.Error(t, err)

	var pErr *PersistenceError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, 1, env.sessions.Count())

	// Retrying the same confirmation succeeds without re-collecting fields.
	resp, err := env.engine.HandleTurn(ctx, "sess-1", "yes")
	require.NoError(t, err)
	assert.True(t, resp.Done)
	require.NotNil(t, resp.Record)
	assert.Len(t, resp.Record.Fields, 7)
}

func TestIdleSweepRemovesStaleSessions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.engine.HandleTurn(ctx, "sess-1", "My name is Jane Doe, email jane@example.com")
	require.NoError(t, err)
	require.Equal(t, 1, env.sessions.Count())

	env.clock.Advance(16 * time.Minute)
	assert.Equal(t, 1, env.engine.SweepOnce())
	assert.Equal(t, 0, env.sessions.Count())

	// The next message starts over with nothing collected.
	resp, err := env.engine.HandleTurn(ctx, "sess-1", "hello")
	require.NoError(t, err)
	assert.Equal(t, 0, resp.Step)
}

func TestIdleSweepKeepsActiveSessions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.engine.HandleTurn(ctx, "sess-1", "hello")
	require.NoError(t, err)

	env.clock.Advance(14 * time.Minute)
	assert.Equal(t, 0, env.engine.SweepOnce())
	assert.Equal(t, 1, env.sessions.Count())
}

func TestHandleTurnDuringIdleSweep(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				env.engine.SweepOnce()
			}
		}
	}()

	// Each advance makes the previous turn's session stale, so the sweep
	// races every turn for the same entry.
	for i := 0; i < 200; i++ {
		env.clock.Advance(16 * time.Minute)
		_, err := env.engine.HandleTurn(ctx, "sess-1",
			"My name is Jane Doe, email jane@example.com")
		require.NoError(t, err)
	}

	close(stop)
	wg.Wait()
}

func TestHandleTurnInputValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cases := []struct {
		name       string
		sessionKey string
		message    string
		field      string
	}{
		{"empty session key", "", "hi", "session_key"},
		{"long session key", strings.Repeat("k", 101), "hi", "session_key"},
		{"empty message", "sess-1", "", "message"},
		{"long message", "sess-1", strings.Repeat("m", 4001), "message"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.engine.HandleTurn(ctx, tc.sessionKey, tc.message)
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tc.field, vErr.Field)
		})
	}
}

type staticExtractor struct {
	fields map[string]string
}

func (x staticExtractor) Extract(_ context.Context, _ map[string]string, _ string, _ []string) Extraction {
	return Extraction{Fields: x.fields}
}

func TestHandleTurnInvalidValuesAreRecollected(t *testing.T) {
	clock := newFakeClock()
	sessions := store.NewMemory(clock.Now)
	required := []string{"name", "email"}

	eng := New(Config{RequiredFields: required}, Deps{
		Sessions:     sessions,
		Appointments: &fakeAppointments{},
		Extractor:    staticExtractor{fields: map[string]string{"name": "A", "email": "bad"}},
		Clock:        clock,
		Logger:       logger.NewNop(),
	})

	// Both values arrive but fail their shape rules, so they are dropped
	// and asked for again instead of reaching confirmation.
	resp, err := eng.HandleTurn(context.Background(), "sess-1", "A bad")
	require.NoError(t, err)
	assert.False(t, resp.Done)
	assert.Equal(t, 0, resp.Step)
	assert.Contains(t, resp.Reply, "at least 2 characters")
	assert.Contains(t, resp.Reply, "name@example.com")
}
