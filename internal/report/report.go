// Package report turns an aggregation snapshot into the per-interval report
// and renders it as text lines or an encoded payload.
package report

import (
	"time"

	"github.com/bft-labs/asdustat/internal/domain"
	"github.com/bft-labs/asdustat/internal/stats"
)

// PointCount is the seen-count of one IOA within an interval.
type PointCount struct {
	IOA   uint32 `json:"ioa" msgpack:"ioa"`
	Count uint32 `json:"count" msgpack:"count"`
}

// CategoryLine summarizes one active category.
type CategoryLine struct {
	Type         uint8        `json:"type" msgpack:"type"`
	Label        string       `json:"label" msgpack:"label"`
	Occurrences  uint64       `json:"occurrences" msgpack:"occurrences"`
	ActivePoints int          `json:"active_points" msgpack:"active_points"`
	Points       []PointCount `json:"points,omitempty" msgpack:"points,omitempty"`
}

// Report is one reporting interval.
type Report struct {
	SessionID         string                  `json:"session_id" msgpack:"session_id"`
	Timestamp         time.Time               `json:"timestamp" msgpack:"timestamp"`
	IntervalMS        int64                   `json:"interval_ms" msgpack:"interval_ms"`
	Categories        []CategoryLine          `json:"categories" msgpack:"categories"`
	TotalActivePoints int                     `json:"total_active_points" msgpack:"total_active_points"`
	TotalOccurrences  uint64                  `json:"total_occurrences" msgpack:"total_occurrences"`
	Counters          domain.PipelineCounters `json:"counters" msgpack:"counters"`
}

// Options control what Build includes.
type Options struct {
	SessionID string
	Interval  time.Duration
	// Detail adds the per-IOA seen-counts to every category line.
	Detail bool
}

// Build derives a report from a detached snapshot. It does not retain snap.
func Build(snap stats.Snapshot, counters domain.PipelineCounters, opts Options) *Report {
	r := &Report{
		SessionID:  opts.SessionID,
		Timestamp:  snap.Taken,
		IntervalMS: opts.Interval.Milliseconds(),
		Categories: make([]CategoryLine, 0, len(snap.Categories)),
		Counters:   counters,
	}

	for _, c := range snap.Categories {
		if c.Occurrences == 0 {
			continue
		}
		line := CategoryLine{
			Type:         uint8(c.Type),
			Label:        c.Type.Label(),
			Occurrences:  c.Occurrences,
			ActivePoints: c.ActivePoints(),
		}
		if opts.Detail {
			ioas := c.SortedIOAs()
			line.Points = make([]PointCount, len(ioas))
			for i, ioa := range ioas {
				line.Points[i] = PointCount{IOA: ioa, Count: c.Points[ioa]}
			}
		}
		r.Categories = append(r.Categories, line)
		r.TotalActivePoints += line.ActivePoints
		r.TotalOccurrences += line.Occurrences
	}
	return r
}
