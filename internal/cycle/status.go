package cycle

import (
	"sync"
	"time"

	"github.com/oicur0t/logstat/pkg/models"
)

// Status holds the outcome of the most recent cycle for concurrent readers
type Status struct {
	mu          sync.RWMutex
	snapshot    models.Snapshot
	hasSnapshot bool
	cycles      uint64
	lastCycle   time.Time
	lastErr     error
}

// NewStatus creates an empty status holder
func NewStatus() *Status {
	return &Status{}
}

func (s *Status) record(at time.Time, snapshot *models.Snapshot, err error) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cycles++
	s.lastCycle = at
	s.lastErr = err
	if snapshot != nil {
		s.snapshot = *snapshot
		s.hasSnapshot = true
	}
}

// Snapshot returns the latest computed snapshot, if any
func (s *Status) Snapshot() (models.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot, s.hasSnapshot
}

// Health reports loop progress and the last cycle's error
func (s *Status) Health() models.Health {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h := models.Health{
		Cycles:      s.cycles,
		LastCycle:   s.lastCycle,
		HasSnapshot: s.hasSnapshot,
	}
	if s.lastErr != nil {
		h.LastError = s.lastErr.Error()
	}
	return h
}
