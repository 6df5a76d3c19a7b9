// Package console renders reports as text and reads operator commands from
// a line-oriented stream.
package console

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/bft-labs/asdustat/internal/ports"
	"github.com/bft-labs/asdustat/internal/report"
)

// Sink writes each report as text lines.
type Sink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewSink creates a text sink writing to w.
func NewSink(w io.Writer) *Sink {
	return &Sink{w: w}
}

// Name identifies the sink.
func (s *Sink) Name() string { return "console" }

// Publish renders r and writes it in one call so concurrent output does not
// interleave with a report.
func (s *Sink) Publish(_ context.Context, r *report.Report) error {
	var buf bytes.Buffer
	if err := report.WriteText(&buf, r); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.w.Write(buf.Bytes())
	return err
}

// Close is a no-op; the writer belongs to the caller.
func (s *Sink) Close() error { return nil }

var _ ports.ReportSink = (*Sink)(nil)
