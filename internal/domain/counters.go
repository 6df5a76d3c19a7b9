package domain

// PipelineCounters are cumulative ingestion counters since start.
type PipelineCounters struct {
	Received   uint64  `json:"received" msgpack:"received"`
	Enqueued   uint64  `json:"enqueued" msgpack:"enqueued"`
	Dropped    uint64  `json:"dropped" msgpack:"dropped"`
	Processed  uint64  `json:"processed" msgpack:"processed"`
	Invalid    uint64  `json:"invalid" msgpack:"invalid"`
	QueueDepth int     `json:"queue_depth" msgpack:"queue_depth"`
	IngestRate float64 `json:"ingest_rate_1m" msgpack:"ingest_rate_1m"`
}
