package loops

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrLoopNotFound indicates the requested loop does not exist.
var ErrLoopNotFound = errors.New("loops: loop not found")

// Store persists open loops. Put is a full upsert; the tracker owns all
// transition logic.
type Store interface {
	Put(ctx context.Context, loop Loop) error
	Get(ctx context.Context, subjectID, loopID string) (Loop, error)
	// ListOpen returns the subject's non-terminal loops (active and
	// surfaced), newest first.
	ListOpen(ctx context.Context, subjectID string) ([]Loop, error)
}

// MemoryStore is the in-process Store used in development and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	loops map[string]map[string]Loop // subjectID -> loopID -> loop
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{loops: make(map[string]map[string]Loop)}
}

func (s *MemoryStore) Put(_ context.Context, loop Loop) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bySubject, ok := s.loops[loop.SubjectID]
	if !ok {
		bySubject = make(map[string]Loop)
		s.loops[loop.SubjectID] = bySubject
	}
	bySubject[loop.ID] = loop
	return nil
}

func (s *MemoryStore) Get(_ context.Context, subjectID, loopID string) (Loop, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if loop, ok := s.loops[subjectID][loopID]; ok {
		return loop, nil
	}
	return Loop{}, ErrLoopNotFound
}

func (s *MemoryStore) ListOpen(_ context.Context, subjectID string) ([]Loop, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Loop
	for _, loop := range s.loops[subjectID] {
		if !loop.Status.Terminal() {
			out = append(out, loop)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
