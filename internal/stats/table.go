// Package stats holds the shared aggregation table the worker pool folds
// ASDUs into and the reporter drains once per interval.
package stats

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/bft-labs/asdustat/internal/domain"
)

// Default bounds.
const (
	DefaultMaxCategories  = 128
	DefaultMaxIdentifiers = 65536

	// maxCategoryBound is the number of distinct TypeID values.
	maxCategoryBound = 256
)

// Config bounds the table. Categories in [0, MaxCategories) and
// identifiers in [0, MaxIdentifiers) are counted; anything else is skipped.
type Config struct {
	MaxCategories  int
	MaxIdentifiers int
}

type category struct {
	occurrences uint64
	points      map[uint32]uint32
}

// Table maps category to an occurrence count and per-IOA seen-counts.
// All mutation happens under a single mutex.
type Table struct {
	mu             sync.Mutex
	categories     []category
	maxIdentifiers uint32
	now            func() time.Time
}

// NewTable allocates a zeroed table.
func NewTable(cfg Config) (*Table, error) {
	if cfg.MaxCategories <= 0 || cfg.MaxCategories > maxCategoryBound {
		return nil, fmt.Errorf("%w: max categories must be in [1,%d], got %d",
			domain.ErrInvalidConfig, maxCategoryBound, cfg.MaxCategories)
	}
	if cfg.MaxIdentifiers <= 0 || cfg.MaxIdentifiers > domain.MaxIOA+1 {
		return nil, fmt.Errorf("%w: max identifiers must be in [1,%d], got %d",
			domain.ErrInvalidConfig, domain.MaxIOA+1, cfg.MaxIdentifiers)
	}
	return &Table{
		categories:     make([]category, cfg.MaxCategories),
		maxIdentifiers: uint32(cfg.MaxIdentifiers),
		now:            time.Now,
	}, nil
}

// Fold records one ASDU. It returns false without touching the table when
// the category is out of range. Identifiers outside the configured range are
// skipped while the rest of the ASDU is still counted.
func (t *Table) Fold(a *domain.ASDU) bool {
	cat := int(a.Type)
	if cat >= len(t.categories) {
		return false
	}

	var buf [64]uint32
	ids := buf[:0]
	for i := range a.Objects {
		if ioa := a.Objects[i].IOA; ioa < t.maxIdentifiers {
			ids = append(ids, ioa)
		}
	}

	t.mu.Lock()
	c := &t.categories[cat]
	c.occurrences++
	if len(ids) > 0 && c.points == nil {
		c.points = make(map[uint32]uint32)
	}
	for _, id := range ids {
		if n := c.points[id]; n < math.MaxUint32 {
			c.points[id] = n + 1
		}
	}
	t.mu.Unlock()
	return true
}

// SnapshotAndReset detaches the current counts and leaves the live table
// zeroed, in one critical section. Only categories with a non-zero
// occurrence count appear in the snapshot.
func (t *Table) SnapshotAndReset() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := Snapshot{Taken: t.now()}
	for i := range t.categories {
		c := &t.categories[i]
		if c.occurrences == 0 {
			continue
		}
		points := c.points
		if points == nil {
			points = map[uint32]uint32{}
		}
		snap.Categories = append(snap.Categories, CategoryCounts{
			Type:        domain.TypeID(i),
			Occurrences: c.occurrences,
			Points:      points,
		})
		c.occurrences = 0
		c.points = nil
	}
	return snap
}

// Occurrences returns the live occurrence count of a category.
func (t *Table) Occurrences(typ domain.TypeID) uint64 {
	if int(typ) >= len(t.categories) {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.categories[typ].occurrences
}

// Seen returns the live seen-count of one identifier within a category.
func (t *Table) Seen(typ domain.TypeID, ioa uint32) uint32 {
	if int(typ) >= len(t.categories) {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.categories[typ].points[ioa]
}

// ActivePoints returns the live number of identifiers seen within a category.
func (t *Table) ActivePoints(typ domain.TypeID) int {
	if int(typ) >= len(t.categories) {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.categories[typ].points)
}

// MaxCategories returns the category bound.
func (t *Table) MaxCategories() int {
	return len(t.categories)
}
