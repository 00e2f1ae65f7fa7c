package intimacy

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const stateKeyPrefix = "intimacy_state:"

// Store persists the rolling window per subject.
type Store interface {
	Get(ctx context.Context, subjectID string, now time.Time) (State, error)
	Save(ctx context.Context, state State) error
	Delete(ctx context.Context, subjectID string) error
}

// RedisStore keeps intimacy windows in redis with a TTL: a subject who goes
// quiet long enough simply starts from a neutral window again.
type RedisStore struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

func NewRedisStore(redisClient *redis.Client, ttl time.Duration) *RedisStore {
	if redisClient == nil {
		panic("intimacy: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = 14 * 24 * time.Hour
	}
	return &RedisStore{
		redis:  redisClient,
		ttl:    ttl,
		tracer: otel.Tracer("rapport.internal.intimacy"),
	}
}

func (s *RedisStore) Get(ctx context.Context, subjectID string, now time.Time) (State, error) {
	ctx, span := s.tracer.Start(ctx, "intimacy.store.get")
	defer span.End()

	data, err := s.redis.Get(ctx, stateKey(subjectID)).Bytes()
	if err == redis.Nil {
		return NewState(subjectID, now), nil
	}
	if err != nil {
		span.RecordError(err)
		return State{}, fmt.Errorf("intimacy: fetch state: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		span.RecordError(err)
		return State{}, fmt.Errorf("intimacy: decode state: %w", err)
	}
	return state, nil
}

func (s *RedisStore) Save(ctx context.Context, state State) error {
	ctx, span := s.tracer.Start(ctx, "intimacy.store.save")
	defer span.End()

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("intimacy: marshal state: %w", err)
	}
	if err := s.redis.Set(ctx, stateKey(state.SubjectID), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("intimacy: persist state: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, subjectID string) error {
	if err := s.redis.Del(ctx, stateKey(subjectID)).Err(); err != nil {
		return fmt.Errorf("intimacy: delete state: %w", err)
	}
	return nil
}

func stateKey(subjectID string) string {
	return stateKeyPrefix + subjectID
}

// MemoryStore is the in-process Store used in development and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]State
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]State)}
}

func (s *MemoryStore) Get(_ context.Context, subjectID string, now time.Time) (State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if state, ok := s.states[subjectID]; ok {
		return state, nil
	}
	return NewState(subjectID, now), nil
}

func (s *MemoryStore) Save(_ context.Context, state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.SubjectID] = state
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, subjectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, subjectID)
	return nil
}
