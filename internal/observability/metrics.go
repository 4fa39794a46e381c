package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for FramesTotal.
const (
	OutcomeAccepted  = "accepted"
	OutcomeDecode    = "decode_error"
	OutcomeInvalid   = "validation_error"
	OutcomeDuplicate = "duplicate"
)

var (
	FramesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "igx_frames_total",
		Help: "Frames ingested, by terminal outcome",
	}, []string{"outcome"})
	DecodeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "igx_decode_errors_total",
		Help: "Frames rejected by the decoder, by error kind",
	}, []string{"kind"})
	DevicesResolved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "igx_device_lookups_total",
		Help: "Device find-or-create calls",
	})
	BatchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "igx_batches_total",
		Help: "Bulk batches processed",
	})
	IngestLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "igx_ingest_latency_seconds",
		Help:    "Time to take one frame to a terminal state",
		Buckets: prometheus.DefBuckets,
	})
)

func ObserveIngestLatency(start time.Time) {
	IngestLatency.Observe(time.Since(start).Seconds())
}
