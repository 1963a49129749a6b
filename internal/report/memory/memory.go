package memory

import (
	"context"
	"fmt"
	"sync"

	ports "donorflow/internal/report"
)

// Store keeps refresh log entries in memory. Used in tests and when no
// spreadsheet is configured but a log is still wanted.
type Store struct {
	mu      sync.Mutex
	entries []ports.Entry
}

func New() *Store {
	return &Store{}
}

// AppendEntry stores the entry and returns a synthetic row reference.
func (s *Store) AppendEntry(_ context.Context, e ports.Entry) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return fmt.Sprintf("mem:%d", len(s.entries)), nil
}

// Entries returns a copy of everything logged so far.
func (s *Store) Entries() []ports.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ports.Entry(nil), s.entries...)
}
