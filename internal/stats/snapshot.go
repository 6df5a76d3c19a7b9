package stats

import (
	"sort"
	"time"

	"github.com/bft-labs/asdustat/internal/domain"
)

// CategoryCounts is the detached state of one category.
type CategoryCounts struct {
	Type        domain.TypeID
	Occurrences uint64
	Points      map[uint32]uint32
}

// ActivePoints returns the number of identifiers with a non-zero seen-count.
func (c CategoryCounts) ActivePoints() int {
	n := 0
	for _, seen := range c.Points {
		if seen > 0 {
			n++
		}
	}
	return n
}

// SortedIOAs returns the active identifiers in ascending order.
func (c CategoryCounts) SortedIOAs() []uint32 {
	ioas := make([]uint32, 0, len(c.Points))
	for ioa, seen := range c.Points {
		if seen > 0 {
			ioas = append(ioas, ioa)
		}
	}
	sort.Slice(ioas, func(i, j int) bool { return ioas[i] < ioas[j] })
	return ioas
}

// Snapshot is a detached copy of the table taken by SnapshotAndReset.
// Categories are ordered by TypeID.
type Snapshot struct {
	Taken      time.Time
	Categories []CategoryCounts
}

// Category looks up one category.
func (s Snapshot) Category(typ domain.TypeID) (CategoryCounts, bool) {
	for _, c := range s.Categories {
		if c.Type == typ {
			return c, true
		}
	}
	return CategoryCounts{}, false
}

// TotalActivePoints sums ActivePoints across categories.
func (s Snapshot) TotalActivePoints() int {
	total := 0
	for _, c := range s.Categories {
		total += c.ActivePoints()
	}
	return total
}

// TotalOccurrences sums occurrence counts across categories.
func (s Snapshot) TotalOccurrences() uint64 {
	var total uint64
	for _, c := range s.Categories {
		total += c.Occurrences
	}
	return total
}

// Empty reports whether nothing was folded during the interval.
func (s Snapshot) Empty() bool {
	return len(s.Categories) == 0
}
