package killsource

import (
	"context"
	"sync"
)

// Static serves cumulative totals from memory. Unknown players report no
// progress. Used for dry runs and tests.
type Static struct {
	mu     sync.Mutex
	totals map[string]int64
}

func NewStatic(totals map[string]int64) *Static {
	s := &Static{totals: make(map[string]int64, len(totals))}
	for id, total := range totals {
		s.totals[id] = total
	}

	return s
}

func (s *Static) Set(externalID string, total int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totals[externalID] = total
}

func (s *Static) KillsSince(_ context.Context, externalID string, cursor int64) (Delta, error) {
	s.mu.Lock()
	total, ok := s.totals[externalID]
	s.mu.Unlock()

	if !ok {
		return Delta{NewCursor: cursor}, nil
	}

	return deltaFromTotal(cursor, total), nil
}
