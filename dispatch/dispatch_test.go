package dispatch

import (
	"testing"

	"github.com/ftahirops/pna/config"
	"github.com/ftahirops/pna/engine"
	"github.com/ftahirops/pna/flow"
	"github.com/ftahirops/pna/model"
)

func ipv4(a, b, c, d byte) uint32 {
	return uint32(a)<<24 | uint32(b)<<16 | uint32(c)<<8 | uint32(d)
}

func isLocal10(ip uint32) bool { return ip>>24 == 10 }

func newTestDispatcher(th flow.Thresholds) *Dispatcher {
	return New(Options{
		Sizes:      model.TableSizes{LipEntries: 64, RipEntries: 64, PortEntries: 64},
		IsLocal:    isLocal10,
		Thresholds: th,
		Notifier:   engine.NewNotifier(config.AlertConfig{}),
		FlowMon:    true,
		RtMon:      false,
		PerfMon:    false,
	})
}

func TestHandleKeyAccumulatesFlowState(t *testing.T) {
	d := newTestDispatcher(flow.Thresholds{})
	key := model.FlowKey{LocalIP: ipv4(10, 0, 0, 1), RemoteIP: ipv4(8, 8, 8, 8), LocalPort: 1000, RemotePort: 443, L4Protocol: model.ProtoTCP}
	d.HandleKey(key, 100)

	info := d.Table().Info()
	if info.NLips != 1 || info.NRips != 1 || info.NPorts != 1 {
		t.Fatalf("counts = %d/%d/%d, want 1/1/1", info.NLips, info.NRips, info.NPorts)
	}
}

func TestHandleKeyDropsNonLocalKey(t *testing.T) {
	d := newTestDispatcher(flow.Thresholds{})
	key := model.FlowKey{LocalIP: ipv4(8, 8, 8, 8), RemoteIP: ipv4(1, 1, 1, 1)}
	d.HandleKey(key, 100)

	info := d.Table().Info()
	if info.NLips != 0 {
		t.Fatalf("expected no lip entries for a non-local key, got %d", info.NLips)
	}
}

func TestPerfReturnsFalseBeforeFirstTick(t *testing.T) {
	d := newTestDispatcher(flow.Thresholds{})
	if _, ok := d.Perf(); ok {
		t.Fatalf("expected no perf report before any interval has elapsed")
	}
}

func TestHandleKeyStopsOnThresholdBreach(t *testing.T) {
	d := newTestDispatcher(flow.Thresholds{Connections: 1})
	local := ipv4(10, 0, 0, 1)

	d.HandleKey(model.FlowKey{LocalIP: local, RemoteIP: ipv4(1, 1, 1, 1), LocalPort: 1, RemotePort: 2, L4Protocol: model.ProtoTCP}, 10)
	d.HandleKey(model.FlowKey{LocalIP: local, RemoteIP: ipv4(2, 2, 2, 2), LocalPort: 1, RemotePort: 2, L4Protocol: model.ProtoTCP}, 10)

	info := d.Table().Info()
	if info.NLips != 1 {
		t.Fatalf("nlips = %d, want 1 (lip already existed on the breaching packet)", info.NLips)
	}
	if info.NRips != 1 {
		t.Fatalf("nrips = %d, want 1 (breaching packet's own rip entry must not be created)", info.NRips)
	}
}
