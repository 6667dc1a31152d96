package controller

import "github.com/beaconhq/pulse/pkg/config"

// PipelineHealth reports the pipeline's degraded/healthy state and
// per-stage lag counters: overall status plus a breakdown per component.
type PipelineHealth struct {
	Healthy  bool `json:"healthy"`
	Degraded bool `json:"degraded"`

	IngestQueueDepth  int `json:"ingest_queue_depth"`
	IngestQueueDepthMax int `json:"ingest_queue_depth_max"`

	TraceIndexSize int `json:"trace_index_size"`

	RejectionCounts map[string]int64 `json:"rejection_counts"`

	Receiver ReceiverHealth `json:"receiver"`

	ActiveRules int `json:"active_rules"`
}

// ReceiverHealth breaks out accepted/rejected counts per ingress
// transport (this design's "observable counters: accepted/rejected per
// transport").
type ReceiverHealth struct {
	UnaryAccepted    int64 `json:"unary_accepted"`
	UnaryRejected    int64 `json:"unary_rejected"`
	StreamAccepted   int64 `json:"stream_accepted"`
	StreamRejected   int64 `json:"stream_rejected"`
	DatagramAccepted int64 `json:"datagram_accepted"`
	DatagramRejected int64 `json:"datagram_rejected"`
	DatagramOversize int64 `json:"datagram_oversize"`
}

// Health reports the controller's current state. Safe to call
// concurrently with the running pipeline.
func (c *Controller) Health() PipelineHealth {
	cfg := c.cfgMgr.Snapshot()

	rejections := make(map[string]int64, 6)
	v := c.validator.Load()
	for _, r := range []config.RejectReason{
		config.RejectBadIdentity, config.RejectTimeOrder, config.RejectOrphanParent,
		config.RejectTokenBudget, config.RejectAttributeShape, config.RejectUnknownKind,
	} {
		rejections[string(r)] = v.Count(r)
	}

	activeRules := 0
	for _, rule := range c.rules.Snapshot() {
		if rule.Enabled {
			activeRules++
		}
	}

	degraded := c.degraded.Load() || c.persister.Degraded()

	return PipelineHealth{
		Healthy:             !degraded,
		Degraded:            degraded,
		IngestQueueDepth:    len(c.ingestCh),
		IngestQueueDepthMax: cfg.Pipeline.QueueDepthReceiver,
		TraceIndexSize:      c.traceIdx.len(),
		RejectionCounts:     rejections,
		Receiver: ReceiverHealth{
			UnaryAccepted:    c.counters.UnaryAccepted.Load(),
			UnaryRejected:    c.counters.UnaryRejected.Load(),
			StreamAccepted:   c.counters.StreamAccepted.Load(),
			StreamRejected:   c.counters.StreamRejected.Load(),
			DatagramAccepted: c.counters.DatagramAccepted.Load(),
			DatagramRejected: c.counters.DatagramRejected.Load(),
			DatagramOversize: c.counters.DatagramOversize.Load(),
		},
		ActiveRules: activeRules,
	}
}
