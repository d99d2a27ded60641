package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/ftahirops/pna/flow"
	"github.com/ftahirops/pna/model"
	"github.com/ftahirops/pna/perfmon"
)

// fakeSource hands back a fixed number of packets, then reports EOF.
type fakeSource struct {
	data   []byte
	n      int
	closed bool
}

func newFakeSource(n int) *fakeSource {
	return &fakeSource{data: []byte{1, 2, 3, 4}, n: n}
}

func (s *fakeSource) ReadPacketData() ([]byte, int, error) {
	if s.n <= 0 {
		return nil, 0, errors.New("eof")
	}
	s.n--
	return s.data, len(s.data), nil
}

func (s *fakeSource) Close() { s.closed = true }

type fakeRouter struct {
	calls int
}

func (r *fakeRouter) Dispatch(data []byte, length int) { r.calls++ }

type fakeShard struct {
	table *flow.Table
}

func (s *fakeShard) Table() *flow.Table { return s.table }
func (s *fakeShard) Perf() (perfmon.Report, bool) {
	return perfmon.Report{FPS: [model.Directions]float64{1, 2}}, true
}

type fakeCloser struct {
	closed bool
}

func (c *fakeCloser) Close() { c.closed = true }

func TestDaemonRunDispatchesUntilSourceCloses(t *testing.T) {
	source := newFakeSource(5)
	router := &fakeRouter{}
	shard := &fakeShard{table: flow.NewTable(model.TableSizes{LipEntries: 4, RipEntries: 4, PortEntries: 4})}
	closer := &fakeCloser{}
	metrics := NewMetricsStore()

	d := NewDaemon(DaemonConfig{
		Source:         source,
		Router:         router,
		Shards:         []ShardExporter{shard},
		Pipelines:      []Closer{closer},
		Metrics:        metrics,
		ExportInterval: 5 * time.Millisecond,
	})

	done := make(chan error, 1)
	go func() { done <- d.Run() }()

	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("expected an error once the fake source reports closed")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("daemon did not return after source exhaustion")
	}

	if router.calls == 0 {
		t.Fatalf("expected at least one dispatched packet")
	}
	if !closer.closed {
		t.Fatalf("expected pipelines to be closed on shutdown")
	}
}
