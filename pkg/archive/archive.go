package archive

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"
)

// ErrNotFound is returned by Get when no run has the requested ID.
var ErrNotFound = errors.New("run not found")

// DefaultListLimit caps List when the caller passes a non-positive limit.
const DefaultListLimit = 50

// Run is the archived record of one summarization.
type Run struct {
	ID        string            `bson:"_id" json:"id"`
	Kind      string            `bson:"kind" json:"kind"`
	InputHash string            `bson:"input_hash" json:"input_hash"`
	CacheKey  string            `bson:"cache_key" json:"cache_key"`
	Options   map[string]string `bson:"options,omitempty" json:"options,omitempty"`
	Samples   int               `bson:"samples" json:"samples"`
	Burnin    int               `bson:"burnin" json:"burnin"`
	Nodes     int               `bson:"nodes" json:"nodes"`
	Newick    string            `bson:"newick,omitempty" json:"newick,omitempty"`
	Version   string            `bson:"version,omitempty" json:"version,omitempty"`
	CreatedAt time.Time         `bson:"created_at" json:"created_at"`
}

// Archive stores and retrieves runs.
type Archive interface {
	Save(ctx context.Context, run Run) error
	Get(ctx context.Context, id string) (*Run, error)
	// List returns the most recent runs, newest first.
	List(ctx context.Context, limit int) ([]Run, error)
	Close(ctx context.Context) error
}

// =============================================================================
// Null
// =============================================================================

// Null is an Archive that stores nothing.
type Null struct{}

func (Null) Save(context.Context, Run) error           { return nil }
func (Null) Get(context.Context, string) (*Run, error) { return nil, ErrNotFound }
func (Null) List(context.Context, int) ([]Run, error)  { return nil, nil }
func (Null) Close(context.Context) error               { return nil }

// =============================================================================
// Memory
// =============================================================================

// MemoryArchive keeps runs in memory. It is safe for concurrent use.
type MemoryArchive struct {
	mu   sync.RWMutex
	runs map[string]Run
}

// NewMemoryArchive returns an empty in-memory archive.
func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{runs: make(map[string]Run)}
}

func (m *MemoryArchive) Save(_ context.Context, run Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = run
	return nil
}

func (m *MemoryArchive) Get(_ context.Context, id string) (*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &run, nil
}

func (m *MemoryArchive) List(_ context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	m.mu.RLock()
	runs := make([]Run, 0, len(m.runs))
	for _, r := range m.runs {
		runs = append(runs, r)
	}
	m.mu.RUnlock()
	sortNewestFirst(runs)
	if len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (m *MemoryArchive) Close(context.Context) error { return nil }

func sortNewestFirst(runs []Run) {
	slices.SortFunc(runs, func(a, b Run) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
}
