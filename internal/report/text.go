package report

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
)

// TimestampLayout is the millisecond-precision timestamp used in text lines.
const TimestampLayout = "2006-01-02 15:04:05.000"

// WriteText renders one line per active category followed by a summary line.
// Per-IOA lines follow their category when the report carries detail.
func WriteText(w io.Writer, r *Report) error {
	ts := r.Timestamp.Format(TimestampLayout)

	for _, c := range r.Categories {
		if _, err := fmt.Fprintf(w, "[%s] %-16s asdu=%-10s active_ioa=%s\n",
			ts, c.Label, humanize.Comma(int64(c.Occurrences)), humanize.Comma(int64(c.ActivePoints))); err != nil {
			return fmt.Errorf("write category %s: %w", c.Label, err)
		}
		for _, p := range c.Points {
			if _, err := fmt.Fprintf(w, "    ioa=%-8d seen=%s\n", p.IOA, humanize.Comma(int64(p.Count))); err != nil {
				return fmt.Errorf("write ioa %d: %w", p.IOA, err)
			}
		}
	}

	if _, err := fmt.Fprintf(w, "[%s] total active_ioa=%s asdu=%s received=%s dropped=%s queue=%d rate=%.1f/s\n",
		ts,
		humanize.Comma(int64(r.TotalActivePoints)),
		humanize.Comma(int64(r.TotalOccurrences)),
		humanize.Comma(int64(r.Counters.Received)),
		humanize.Comma(int64(r.Counters.Dropped)),
		r.Counters.QueueDepth,
		r.Counters.IngestRate,
	); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}
