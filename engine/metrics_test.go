package engine

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ftahirops/pna/model"
	"github.com/ftahirops/pna/perfmon"
)

func TestMetricsStoreExposesPrometheusFormat(t *testing.T) {
	s := NewMetricsStore()

	info := model.NewTableInfo(model.TableSizes{LipEntries: 4, RipEntries: 4, PortEntries: 4})
	info.NLips = 3
	info.NRips = 7
	s.UpdateTable(0, info)

	s.UpdatePerf(0, perfmon.Report{
		FPS:      [model.Directions]float64{10, 20},
		Mbps:     [model.Directions]float64{1.5, 2.5},
		AvgFrame: [model.Directions]float64{100, 200},
	})

	s.UpdateRtmon(0, "lipmon", 5)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	s.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	for _, want := range []string{
		`pna_flow_nlips{shard="0"}`,
		`pna_flow_nrips{shard="0"}`,
		`pna_perf_fps{shard="0",dir="out"}`,
		`pna_perf_mbps{shard="0",dir="in"}`,
		`pna_rtmon_tracked{shard="0",monitor="lipmon"}`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected metrics output to contain %q, got:\n%s", want, body)
		}
	}
}

func TestMetricsStoreSetGaugeUpdatesExistingSeries(t *testing.T) {
	s := NewMetricsStore()
	info := model.NewTableInfo(model.TableSizes{LipEntries: 4, RipEntries: 4, PortEntries: 4})
	info.NLips = 1
	s.UpdateTable(0, info)
	info.NLips = 42
	s.UpdateTable(0, info)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	s.Handler().ServeHTTP(rec, req)

	if !strings.Contains(rec.Body.String(), `pna_flow_nlips{shard="0"} 42`) {
		t.Fatalf("expected updated gauge value, got:\n%s", rec.Body.String())
	}
}
