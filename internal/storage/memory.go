package storage

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps client state and the upload registry in memory. It backs
// tests and deployments that do not need persistence across restarts.
type MemoryStore struct {
	mu      sync.Mutex
	state   map[string]string
	sources []UploadedSource
	nextID  int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state:  make(map[string]string),
		nextID: 1,
	}
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) GetState(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.state[key]
	return v, ok, nil
}

func (s *MemoryStore) SetState(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state[key] = value
	return nil
}

func (s *MemoryStore) DeleteState(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.state, k)
	}
	return nil
}

func (s *MemoryStore) RecordUpload(_ context.Context, src UploadedSource) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src.ID = s.nextID
	s.nextID++
	if src.UploadedAt.IsZero() {
		src.UploadedAt = time.Now()
	}
	s.sources = append(s.sources, src)
	return src.ID, nil
}

func (s *MemoryStore) ListSources(_ context.Context) ([]UploadedSource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]UploadedSource, 0, len(s.sources))
	for i := len(s.sources) - 1; i >= 0; i-- {
		out = append(out, s.sources[i])
	}
	return out, nil
}

func (s *MemoryStore) DeleteByFilename(_ context.Context, filename string) (int64, error) {
	return s.deleteWhere(func(src UploadedSource) bool { return src.Filename == filename })
}

func (s *MemoryStore) DeleteBySourceLabel(_ context.Context, source string) (int64, error) {
	return s.deleteWhere(func(src UploadedSource) bool { return src.Source == source })
}

func (s *MemoryStore) DeleteByDataset(_ context.Context, dataset string) (int64, error) {
	return s.deleteWhere(func(src UploadedSource) bool { return src.Dataset == dataset })
}

func (s *MemoryStore) deleteWhere(match func(UploadedSource) bool) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var kept []UploadedSource
	var removed int64
	for _, src := range s.sources {
		if match(src) {
			removed++
			continue
		}
		kept = append(kept, src)
	}
	s.sources = kept
	return removed, nil
}
