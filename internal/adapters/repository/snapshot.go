package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/okian/innerscore/internal/domain/model"
	"github.com/okian/innerscore/pkg/metrics"
)

// snapshot is an immutable view of one published collection.
type snapshot struct {
	byName []model.Repository // sorted by name
	index  map[string]int     // name -> position in byName
	ranked []Entry            // score desc, name asc
	run    Run
}

// SnapshotStore is an in-memory Store. Readers never block each other;
// Replace builds the next snapshot off-lock and swaps it in.
type SnapshotStore struct {
	mu   sync.RWMutex
	snap *snapshot
	now  func() time.Time
}

var _ Store = (*SnapshotStore)(nil)

// NewSnapshotStore creates an empty store.
func NewSnapshotStore(opts ...Option) *SnapshotStore {
	s := &SnapshotStore{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Replace implements Store.
func (s *SnapshotStore) Replace(_ context.Context, runID string, records []model.Repository) error {
	next := &snapshot{
		byName: make([]model.Repository, len(records)),
		index:  make(map[string]int, len(records)),
		ranked: make([]Entry, len(records)),
	}
	for i := range records {
		next.byName[i] = records[i].Clone()
	}
	sort.SliceStable(next.byName, func(i, j int) bool {
		return next.byName[i].Name < next.byName[j].Name
	})

	for i := range next.byName {
		name := next.byName[i].Name
		if _, dup := next.index[name]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateName, name)
		}
		next.index[name] = i
		next.ranked[i] = Entry{Name: name, Score: next.byName[i].Score}
	}

	// byName order breaks score ties by name.
	sort.SliceStable(next.ranked, func(i, j int) bool {
		return next.ranked[i].Score > next.ranked[j].Score
	})
	for i := range next.ranked {
		next.ranked[i].Rank = i + 1
	}
	next.run = Run{ID: runID, At: s.now(), Count: len(records)}

	s.mu.Lock()
	s.snap = next
	s.mu.Unlock()

	metrics.UpdateCollectionSize(len(records))
	return nil
}

func (s *SnapshotStore) current() *snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// All implements Store.
func (s *SnapshotStore) All(_ context.Context) ([]model.Repository, error) {
	snap := s.current()
	if snap == nil {
		return []model.Repository{}, nil
	}
	out := make([]model.Repository, len(snap.byName))
	for i := range snap.byName {
		out[i] = snap.byName[i].Clone()
	}
	return out, nil
}

// Get implements Store.
func (s *SnapshotStore) Get(_ context.Context, name string) (model.Repository, error) {
	snap := s.current()
	if snap == nil {
		return model.Repository{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	i, ok := snap.index[name]
	if !ok {
		return model.Repository{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return snap.byName[i].Clone(), nil
}

// TopN implements Store.
func (s *SnapshotStore) TopN(_ context.Context, n int) ([]Entry, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, n)
	}
	snap := s.current()
	if snap == nil {
		return []Entry{}, nil
	}
	if n > len(snap.ranked) {
		n = len(snap.ranked)
	}
	out := make([]Entry, n)
	copy(out, snap.ranked[:n])
	return out, nil
}

// Count implements Store.
func (s *SnapshotStore) Count(_ context.Context) int {
	snap := s.current()
	if snap == nil {
		return 0
	}
	return len(snap.byName)
}

// LastRun implements Store.
func (s *SnapshotStore) LastRun(_ context.Context) (Run, bool) {
	snap := s.current()
	if snap == nil {
		return Run{}, false
	}
	return snap.run, true
}
