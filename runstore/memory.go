package runstore

import (
	"context"
	"sort"
	"sync"
	"time"

	apperrors "github.com/kbukum/caseflow/errors"
)

// Memory is an in-process Store.
type Memory struct {
	mu       sync.RWMutex
	runs     map[string]Run
	attempts map[string][]TaskAttempt
	now      func() time.Time
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{
		runs:     make(map[string]Run),
		attempts: make(map[string][]TaskAttempt),
		now:      time.Now,
	}
}

func (m *Memory) SaveRun(ctx context.Context, run *Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if existing, ok := m.runs[run.ID]; ok {
		run.CreatedAt = existing.CreatedAt
	} else if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	run.UpdatedAt = now
	m.runs[run.ID] = *run
	return nil
}

func (m *Memory) GetRun(ctx context.Context, id string) (*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.runs[id]
	if !ok {
		return nil, apperrors.NotFound("run", id)
	}
	return &r, nil
}

func (m *Memory) ListRuns(ctx context.Context, opts ListOptions) ([]Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Run, 0, len(m.runs))
	for _, r := range m.runs {
		if opts.DAGID != "" && r.DAGID != opts.DAGID {
			continue
		}
		if opts.Status != "" && r.Status != opts.Status {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].LogicalDate > out[j].LogicalDate
	})
	if len(out) > opts.limit() {
		out = out[:opts.limit()]
	}
	return out, nil
}

func (m *Memory) RecordAttempt(ctx context.Context, a *TaskAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts[a.RunID] = append(m.attempts[a.RunID], *a)
	return nil
}

func (m *Memory) Attempts(ctx context.Context, runID string) ([]TaskAttempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]TaskAttempt(nil), m.attempts[runID]...), nil
}

func (m *Memory) LastLogicalDate(ctx context.Context, dagID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	last := ""
	for _, r := range m.runs {
		if r.DAGID == dagID && r.Trigger == TriggerScheduled && r.LogicalDate > last {
			last = r.LogicalDate
		}
	}
	return last, nil
}

func (m *Memory) FailUnfinished(ctx context.Context, dagID string, at time.Time, code, message string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, r := range m.runs {
		if r.DAGID != dagID || r.Status.Terminal() {
			continue
		}
		r.Interrupt(at, code, message)
		r.UpdatedAt = m.now()
		m.runs[id] = r
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
