package gatekeeper

import "sync/atomic"

// MetricID indexes one engine counter.
type MetricID uint16

const (
	// MetricLoginSuccess counts successful logins.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts failed credential checks, both unknown
	// identity and bad password.
	MetricLoginFailure
	// MetricLoginRejected counts logins refused by PreventNewLoginWhenFull.
	MetricLoginRejected
	// MetricSessionCreated counts sessions established.
	MetricSessionCreated
	// MetricSessionEvicted counts sessions invalidated by the quota enforcer.
	MetricSessionEvicted
	// MetricLogout counts explicit logouts.
	MetricLogout
	// MetricRegistryError counts registry round-trips that failed.
	MetricRegistryError
	metricIDCount
)

// Metrics is a fixed set of in-process atomic counters. Snapshot copies are
// cheap; exporters poll rather than subscribe.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]atomic.Uint64
}

func newMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

func (m *Metrics) inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	m.counters[id].Add(1)
}

func (m *Metrics) add(id MetricID, n uint64) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	m.counters[id].Add(n)
}

// Get returns the current value of one counter.
func (m *Metrics) Get(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return m.counters[id].Load()
}

// Snapshot returns a point-in-time copy of every counter keyed by name.
func (m *Metrics) Snapshot() map[string]uint64 {
	if m == nil {
		return nil
	}
	return map[string]uint64{
		"login_success":   m.Get(MetricLoginSuccess),
		"login_failure":   m.Get(MetricLoginFailure),
		"login_rejected":  m.Get(MetricLoginRejected),
		"session_created": m.Get(MetricSessionCreated),
		"session_evicted": m.Get(MetricSessionEvicted),
		"logout":          m.Get(MetricLogout),
		"registry_error":  m.Get(MetricRegistryError),
	}
}
