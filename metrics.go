package pldm

import (
	"sync/atomic"
	"time"

	"github.com/obmc-pldm/pldm/internal/interfaces"
)

// Metrics tracks the operational counters a running Responder exposes,
// one instance shared across every endpoint's Poller.
type Metrics struct {
	PollsIssued        atomic.Uint64
	CriticalPollsIssued atomic.Uint64
	EventsDelivered     atomic.Uint64
	EventBytesDelivered atomic.Uint64
	ChecksumMismatches  atomic.Uint64
	PollTimeouts        atomic.Uint64
	QueueFullRejections atomic.Uint64
	QueueDuplicateRejections atomic.Uint64

	StartTime atomic.Int64
	StopTime  atomic.Int64
}

// NewMetrics creates a new metrics instance, timestamped at construction.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// Stop marks the responder as stopped, fixing the uptime calculation.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time copy of Metrics, safe to hold onto
// after the live counters keep moving.
type MetricsSnapshot struct {
	PollsIssued              uint64
	CriticalPollsIssued      uint64
	EventsDelivered          uint64
	EventBytesDelivered      uint64
	ChecksumMismatches       uint64
	PollTimeouts             uint64
	QueueFullRejections      uint64
	QueueDuplicateRejections uint64
	UptimeNs                 uint64
}

// Snapshot copies the current counter values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		PollsIssued:              m.PollsIssued.Load(),
		CriticalPollsIssued:      m.CriticalPollsIssued.Load(),
		EventsDelivered:          m.EventsDelivered.Load(),
		EventBytesDelivered:      m.EventBytesDelivered.Load(),
		ChecksumMismatches:       m.ChecksumMismatches.Load(),
		PollTimeouts:             m.PollTimeouts.Load(),
		QueueFullRejections:      m.QueueFullRejections.Load(),
		QueueDuplicateRejections: m.QueueDuplicateRejections.Load(),
	}
	start := m.StartTime.Load()
	stop := m.StopTime.Load()
	if stop > 0 {
		snap.UptimeNs = uint64(stop - start)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - start)
	}
	return snap
}

// MetricsObserver implements interfaces.Observer by recording every
// signal into a Metrics instance.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an observer that records to m.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObservePollIssued(eid uint8, critical bool) {
	o.metrics.PollsIssued.Add(1)
	if critical {
		o.metrics.CriticalPollsIssued.Add(1)
	}
}

func (o *MetricsObserver) ObserveEventDelivered(eid uint8, eventClass uint8, bytes int) {
	o.metrics.EventsDelivered.Add(1)
	o.metrics.EventBytesDelivered.Add(uint64(bytes))
}

func (o *MetricsObserver) ObserveChecksumMismatch(eid uint8) {
	o.metrics.ChecksumMismatches.Add(1)
}

func (o *MetricsObserver) ObservePollTimeout(eid uint8) {
	o.metrics.PollTimeouts.Add(1)
}

func (o *MetricsObserver) ObserveQueueRejected(eid uint8, full bool) {
	if full {
		o.metrics.QueueFullRejections.Add(1)
	} else {
		o.metrics.QueueDuplicateRejections.Add(1)
	}
}

// NoOpObserver discards every signal. NewResponder does not fall back to
// it: with no Options.Observer it records into its own Metrics through a
// MetricsObserver.
type NoOpObserver struct{}

func (NoOpObserver) ObservePollIssued(eid uint8, critical bool)             {}
func (NoOpObserver) ObserveEventDelivered(eid uint8, eventClass uint8, n int) {}
func (NoOpObserver) ObserveChecksumMismatch(eid uint8)                      {}
func (NoOpObserver) ObservePollTimeout(eid uint8)                           {}
func (NoOpObserver) ObserveQueueRejected(eid uint8, full bool)              {}

var (
	_ interfaces.Observer = (*MetricsObserver)(nil)
	_ interfaces.Observer = NoOpObserver{}
)
