package perfmon

import (
	"testing"
	"time"

	"github.com/ftahirops/pna/model"
)

func TestTickBeforeDeadlineReportsNothing(t *testing.T) {
	now := time.Unix(0, 0)
	s := newIntervalSampler(func() time.Time { return now })
	s.Add(model.DirOutbound, 100)
	if _, ok := s.Tick(); ok {
		t.Fatalf("expected no report before the interval elapses")
	}
}

func TestTickAboveNoiseFloorReports(t *testing.T) {
	now := time.Unix(0, 0)
	s := newIntervalSampler(func() time.Time { return now })
	for i := 0; i < 20000; i++ {
		s.Add(model.DirOutbound, 100)
	}
	now = now.Add(PerfInterval)
	r, ok := s.Tick()
	if !ok {
		t.Fatalf("expected a report above the noise floor")
	}
	if r.FPS[model.DirOutbound] <= 1000 {
		t.Fatalf("fps[out] = %f, want > 1000", r.FPS[model.DirOutbound])
	}
}

func TestTickBelowNoiseFloorSuppressedButResets(t *testing.T) {
	now := time.Unix(0, 0)
	s := newIntervalSampler(func() time.Time { return now })
	s.Add(model.DirOutbound, 100)
	now = now.Add(PerfInterval)
	if _, ok := s.Tick(); ok {
		t.Fatalf("expected suppression below the noise floor")
	}
	if s.packets[model.DirOutbound] != 0 {
		t.Fatalf("counters should reset even when the report is suppressed")
	}
}

func TestAvgFrameSizeIncludesEthOverhead(t *testing.T) {
	now := time.Unix(0, 0)
	s := newIntervalSampler(func() time.Time { return now })
	for i := 0; i < 2000; i++ {
		s.Add(model.DirOutbound, 80)
	}
	now = now.Add(PerfInterval)
	r, _ := s.Tick()
	want := float64(80 + EthOverhead)
	if r.AvgFrame[model.DirOutbound] != want {
		t.Fatalf("avg frame = %f, want %f", r.AvgFrame[model.DirOutbound], want)
	}
}
