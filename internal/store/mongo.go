package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/clinicdesk-ai/booking-assistant/internal/model"
	"github.com/clinicdesk-ai/booking-assistant/pkg/logger"
)

const (
	appointmentsCollection = "appointments"
	turnsCollection        = "turns"
)

// Mongo persists appointment records and conversation turns.
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
	logger *logger.Logger
}

// ConnectMongo connects to MongoDB and verifies the connection.
func ConnectMongo(ctx context.Context, uri, database string, log *logger.Logger) (*Mongo, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &Mongo{
		client: client,
		db:     client.Database(database),
		logger: log,
	}, nil
}

// Close disconnects the client.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// Ping verifies the connection, for readiness checks.
func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

// InsertAppointment durably stores a confirmed booking and returns its id.
func (m *Mongo) InsertAppointment(ctx context.Context, a *model.Appointment) (string, error) {
	if a.ID == "" {
		a.ID = uuid.Must(uuid.NewV7()).String()
	}

	if _, err := m.db.Collection(appointmentsCollection).InsertOne(ctx, a); err != nil {
		return "", fmt.Errorf("failed to insert appointment: %w", err)
	}

	return a.ID, nil
}

// AppendTurn stores one conversation turn.
func (m *Mongo) AppendTurn(ctx context.Context, t *model.Turn) error {
	if t.ID == "" {
		t.ID = uuid.Must(uuid.NewV7()).String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}

	if _, err := m.db.Collection(turnsCollection).InsertOne(ctx, t); err != nil {
		return fmt.Errorf("failed to insert turn: %w", err)
	}
	return nil
}

// History returns the most recent turns for a session, oldest first.
func (m *Mongo) History(ctx context.Context, sessionKey string, limit int64) ([]model.Turn, error) {
	if limit <= 0 {
		limit = 50
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit)

	cursor, err := m.db.Collection(turnsCollection).Find(ctx, bson.M{"session_key": sessionKey}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find turns: %w", err)
	}

	var turns []model.Turn
	if err := cursor.All(ctx, &turns); err != nil {
		return nil, fmt.Errorf("failed to decode turns: %w", err)
	}

	// Reverse into chronological order.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// RecentAppointments returns the most recently booked appointments.
func (m *Mongo) RecentAppointments(ctx context.Context, limit int64) ([]model.Appointment, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit)

	cursor, err := m.db.Collection(appointmentsCollection).Find(ctx, bson.M{"status": model.StatusBooked}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find appointments: %w", err)
	}

	var out []model.Appointment
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode appointments: %w", err)
	}
	return out, nil
}
