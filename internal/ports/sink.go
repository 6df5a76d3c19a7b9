package ports

import (
	"context"

	"github.com/bft-labs/asdustat/internal/report"
)

// ReportSink publishes interval reports.
type ReportSink interface {
	// Name identifies the sink in logs.
	Name() string

	// Publish delivers one report. Implementations must not retain r.
	Publish(ctx context.Context, r *report.Report) error

	// Close releases the sink's resources.
	Close() error
}
