package rbe

import "sync"

// Metrics is an in-process counter/gauge collector for the engine's own
// operational signals: call counts per algorithm and the depth of the
// last merge cascade. There is no exporter here — CSV/telemetry output
// is out of scope for the core — callers read the snapshot directly.
type Metrics struct {
	mu sync.Mutex

	counters map[string]int64
	gauges   map[string]float64
}

// NewMetrics returns an empty collector.
func NewMetrics() *Metrics {
	return &Metrics{
		counters: make(map[string]int64),
		gauges:   make(map[string]float64),
	}
}

func (m *Metrics) incr(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name]++
}

func (m *Metrics) setGauge(name string, v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauges[name] = v
}

// Snapshot returns a point-in-time copy of every counter and gauge.
func (m *Metrics) Snapshot() (counters map[string]int64, gauges map[string]float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counters = make(map[string]int64, len(m.counters))
	for k, v := range m.counters {
		counters[k] = v
	}
	gauges = make(map[string]float64, len(m.gauges))
	for k, v := range m.gauges {
		gauges[k] = v
	}
	return counters, gauges
}

const (
	metricRegCalls   = "reg_calls_total"
	metricRegFailed  = "reg_failed_total"
	metricMergeCalls = "merge_calls_total"
	metricEncCalls   = "enc_calls_total"
	metricUpdCalls   = "upd_calls_total"
	metricDecCalls   = "dec_calls_total"
	metricDecNeedUpd = "dec_need_update_total"
	metricMergeDepth = "last_merge_depth"
)
