package scheduler

import (
	"sync"
	"sync/atomic"
)

// State is the process-wide scheduling state: how many runs are active and
// the last logical date a scheduled run was created for.
type State struct {
	max    int32
	active atomic.Int32

	mu            sync.Mutex
	lastTriggered string
}

// NewState creates a State allowing max concurrent runs.
func NewState(max int) *State {
	return &State{max: int32(max)}
}

// TryAcquire reserves an active-run slot. It never lets Active exceed max.
func (s *State) TryAcquire() bool {
	for {
		n := s.active.Load()
		if n >= s.max {
			return false
		}
		if s.active.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// Release frees a slot taken by TryAcquire.
func (s *State) Release() {
	s.active.Add(-1)
}

// Active returns the number of reserved slots.
func (s *State) Active() int {
	return int(s.active.Load())
}

// Claim records date as triggered. It fails if date is not after the last
// triggered date; logical dates use a sortable YYYY-MM-DD layout.
func (s *State) Claim(date string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if date <= s.lastTriggered {
		return false
	}
	s.lastTriggered = date
	return true
}

// Restore sets the last triggered date, keeping the later of the two.
func (s *State) Restore(date string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if date > s.lastTriggered {
		s.lastTriggered = date
	}
}

// LastTriggered returns the last claimed logical date.
func (s *State) LastTriggered() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastTriggered
}
