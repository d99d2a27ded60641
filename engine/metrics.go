package engine

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/VictoriaMetrics/metrics"

	"github.com/ftahirops/pna/model"
	"github.com/ftahirops/pna/perfmon"
)

// MetricsStore exports per-shard flow-table and perf counters in the
// Prometheus text exposition format, the observability surface spec.md
// §6 implies alongside capture and alerting.
//
// metrics.Gauge is callback-based rather than settable, so every gauge
// this store registers reads back from values under its own lock — the
// same shape R2Northstar-Atlas/pkg/api/api0/metrics.go uses for its
// lazily-initialized named counters, adapted here for values that change
// on every export tick instead of only growing.
type MetricsStore struct {
	set *metrics.Set

	mu     sync.Mutex
	values map[string]float64
}

// NewMetricsStore creates an empty store.
func NewMetricsStore() *MetricsStore {
	return &MetricsStore{set: metrics.NewSet(), values: make(map[string]float64)}
}

// UpdateTable records one shard's current flow-table counters.
func (s *MetricsStore) UpdateTable(shard int, info *model.TableInfo) {
	s.setGauge(fmt.Sprintf(`pna_flow_nlips{shard="%d"}`, shard), float64(info.NLips))
	s.setGauge(fmt.Sprintf(`pna_flow_nlips_missed{shard="%d"}`, shard), float64(info.NLipsMissed))
	s.setGauge(fmt.Sprintf(`pna_flow_nrips{shard="%d"}`, shard), float64(info.NRips))
	s.setGauge(fmt.Sprintf(`pna_flow_nrips_missed{shard="%d"}`, shard), float64(info.NRipsMissed))
	s.setGauge(fmt.Sprintf(`pna_flow_nports{shard="%d"}`, shard), float64(info.NPorts))
	s.setGauge(fmt.Sprintf(`pna_flow_nports_missed{shard="%d"}`, shard), float64(info.NPortsMissed))
}

// UpdatePerf records one shard's latest perfmon interval report.
func (s *MetricsStore) UpdatePerf(shard int, r perfmon.Report) {
	dirs := [model.Directions]string{model.DirInbound: "in", model.DirOutbound: "out"}
	for d := model.Direction(0); d < model.Directions; d++ {
		label := dirs[d]
		s.setGauge(fmt.Sprintf(`pna_perf_fps{shard="%d",dir="%s"}`, shard, label), r.FPS[d])
		s.setGauge(fmt.Sprintf(`pna_perf_mbps{shard="%d",dir="%s"}`, shard, label), r.Mbps[d])
		s.setGauge(fmt.Sprintf(`pna_perf_avg_frame_bytes{shard="%d",dir="%s"}`, shard, label), r.AvgFrame[d])
	}
}

// UpdateRtmon records a named rtmon monitor's scalar count (e.g. active
// tracked remotes or hosts) for one shard.
func (s *MetricsStore) UpdateRtmon(shard int, monitor string, count int) {
	s.setGauge(fmt.Sprintf(`pna_rtmon_tracked{shard="%d",monitor="%s"}`, shard, monitor), float64(count))
}

// setGauge records value under name, registering a VictoriaMetrics gauge
// backed by the stored value the first time name is seen.
func (s *MetricsStore) setGauge(name string, value float64) {
	s.mu.Lock()
	_, seen := s.values[name]
	s.values[name] = value
	s.mu.Unlock()

	if !seen {
		s.set.NewGauge(name, func() float64 {
			s.mu.Lock()
			defer s.mu.Unlock()
			return s.values[name]
		})
	}
}

// Handler serves the current metrics in Prometheus text format.
func (s *MetricsStore) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.set.WritePrometheus(w)
	})
}
