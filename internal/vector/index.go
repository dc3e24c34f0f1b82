// Package vector provides a Redis-backed embedding index for semantic
// context enrichment. The index is best-effort: callers treat any failure
// as an empty result.
package vector

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/clinicdesk-ai/booking-assistant/pkg/logger"
	"github.com/clinicdesk-ai/booking-assistant/pkg/metrics"
)

const keyPrefix = "vec:turn:"

// Match is one semantic search result.
type Match struct {
	ID    string  `json:"id"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// Index stores embeddings in Redis hashes and searches by cosine similarity.
type Index struct {
	rdb    *redis.Client
	logger *logger.Logger
}

// Connect creates an index backed by the given Redis instance.
func Connect(ctx context.Context, addr, password string, db int, log *logger.Logger) (*Index, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &Index{rdb: rdb, logger: log}, nil
}

// Close releases the Redis connection.
func (ix *Index) Close() error {
	return ix.rdb.Close()
}

// Upsert stores the embedding for id, overwriting any previous value.
func (ix *Index) Upsert(ctx context.Context, id, text string, vec []float32, meta map[string]string) error {
	encoded, err := json.Marshal(vec)
	if err != nil {
		return fmt.Errorf("failed to encode vector: %w", err)
	}

	fields := map[string]interface{}{
		"text":   text,
		"vector": string(encoded),
	}
	if len(meta) > 0 {
		encodedMeta, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("failed to encode metadata: %w", err)
		}
		fields["meta"] = string(encodedMeta)
	}

	if err := ix.rdb.HSet(ctx, keyPrefix+id, fields).Err(); err != nil {
		return fmt.Errorf("failed to store vector: %w", err)
	}
	return nil
}

// Search returns the topK stored entries most similar to vec.
func (ix *Index) Search(ctx context.Context, vec []float32, topK int) ([]Match, error) {
	start := time.Now()
	defer func() {
		metrics.VectorSearchDuration.Observe(time.Since(start).Seconds())
	}()

	if topK <= 0 {
		topK = 3
	}

	var matches []Match
	var cursor uint64
	for {
		keys, next, err := ix.rdb.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan vectors: %w", err)
		}

		for _, key := range keys {
			fields, err := ix.rdb.HGetAll(ctx, key).Result()
			if err != nil {
				continue
			}

			var stored []float32
			if err := json.Unmarshal([]byte(fields["vector"]), &stored); err != nil {
				continue
			}

			score := Cosine(vec, stored)
			matches = append(matches, Match{
				ID:    key[len(keyPrefix):],
				Text:  fields["text"],
				Score: score,
			})
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Cosine returns the cosine similarity of two vectors, 0 when either has no
// magnitude or the dimensions differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
