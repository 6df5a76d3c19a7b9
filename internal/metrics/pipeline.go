// Package metrics keeps the cumulative pipeline counters in a go-metrics
// registry so they can be read by the reporter and exported by embedders.
package metrics

import (
	gometrics "github.com/rcrowley/go-metrics"

	"github.com/bft-labs/asdustat/internal/domain"
)

// Metric names registered by NewPipeline.
const (
	NameReceived      = "asdu.received"
	NameEnqueued      = "asdu.enqueued"
	NameDropped       = "asdu.dropped"
	NameProcessed     = "asdu.processed"
	NameInvalid       = "asdu.invalid"
	NameIngestRate    = "asdu.ingest"
	NamePublished     = "report.published"
	NamePublishFailed = "report.publish_failed"
)

// Pipeline groups the counters touched on the ingestion hot path.
type Pipeline struct {
	registry gometrics.Registry

	received      gometrics.Counter
	enqueued      gometrics.Counter
	dropped       gometrics.Counter
	processed     gometrics.Counter
	invalid       gometrics.Counter
	ingest        gometrics.Meter
	published     gometrics.Counter
	publishFailed gometrics.Counter
}

// NewPipeline registers the pipeline metrics in a fresh registry.
func NewPipeline() *Pipeline {
	r := gometrics.NewRegistry()
	return &Pipeline{
		registry:      r,
		received:      gometrics.NewRegisteredCounter(NameReceived, r),
		enqueued:      gometrics.NewRegisteredCounter(NameEnqueued, r),
		dropped:       gometrics.NewRegisteredCounter(NameDropped, r),
		processed:     gometrics.NewRegisteredCounter(NameProcessed, r),
		invalid:       gometrics.NewRegisteredCounter(NameInvalid, r),
		ingest:        gometrics.NewRegisteredMeter(NameIngestRate, r),
		published:     gometrics.NewRegisteredCounter(NamePublished, r),
		publishFailed: gometrics.NewRegisteredCounter(NamePublishFailed, r),
	}
}

// Received records one ASDU arriving from the protocol layer.
func (p *Pipeline) Received() {
	p.received.Inc(1)
	p.ingest.Mark(1)
}

// Enqueued records an ASDU accepted by the queue.
func (p *Pipeline) Enqueued() { p.enqueued.Inc(1) }

// Dropped records an ASDU rejected by a full queue.
func (p *Pipeline) Dropped() { p.dropped.Inc(1) }

// Processed records an ASDU folded into the table.
func (p *Pipeline) Processed() { p.processed.Inc(1) }

// Invalid records an ASDU skipped for an out-of-range category.
func (p *Pipeline) Invalid() { p.invalid.Inc(1) }

// Published records a report delivered to a sink.
func (p *Pipeline) Published() { p.published.Inc(1) }

// PublishFailed records a sink failure.
func (p *Pipeline) PublishFailed() { p.publishFailed.Inc(1) }

// Counters returns the cumulative counters. queueDepth is supplied by the caller.
func (p *Pipeline) Counters(queueDepth int) domain.PipelineCounters {
	return domain.PipelineCounters{
		Received:   uint64(p.received.Count()),
		Enqueued:   uint64(p.enqueued.Count()),
		Dropped:    uint64(p.dropped.Count()),
		Processed:  uint64(p.processed.Count()),
		Invalid:    uint64(p.invalid.Count()),
		QueueDepth: queueDepth,
		IngestRate: p.ingest.Rate1(),
	}
}

// Registry exposes the underlying registry for exporters.
func (p *Pipeline) Registry() gometrics.Registry {
	return p.registry
}

// Close stops the meter tickers.
func (p *Pipeline) Close() {
	p.registry.UnregisterAll()
}
