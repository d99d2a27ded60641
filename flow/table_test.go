package flow

import (
	"testing"

	"github.com/ftahirops/pna/model"
)

func isLocal10(ip uint32) bool {
	return ip>>24 == 10
}

func ipv4(a, b, c, d byte) uint32 {
	return uint32(a)<<24 | uint32(b)<<16 | uint32(c)<<8 | uint32(d)
}

func TestLocalizeOutboundAndInbound(t *testing.T) {
	k := model.FlowKey{LocalIP: ipv4(10, 0, 0, 1), RemoteIP: ipv4(8, 8, 8, 8), LocalPort: 1000, RemotePort: 443}
	dir, ok := Localize(&k, isLocal10)
	if !ok || dir != model.DirOutbound {
		t.Fatalf("outbound localize: dir=%v ok=%v", dir, ok)
	}
	if k.LocalIP != ipv4(10, 0, 0, 1) {
		t.Fatalf("outbound localize mutated an already-canonical key")
	}

	reply := model.FlowKey{LocalIP: ipv4(8, 8, 8, 8), RemoteIP: ipv4(10, 0, 0, 1), LocalPort: 443, RemotePort: 1000}
	dir, ok = Localize(&reply, isLocal10)
	if !ok || dir != model.DirInbound {
		t.Fatalf("inbound localize: dir=%v ok=%v", dir, ok)
	}
	if reply.LocalIP != ipv4(10, 0, 0, 1) || reply.LocalPort != 1000 {
		t.Fatalf("inbound localize did not canonicalize: %+v", reply)
	}

	dirAgain, ok := Localize(&reply, isLocal10)
	if !ok || dirAgain != model.DirOutbound {
		t.Fatalf("localize of an already-canonical key should be idempotent and report outbound, got dir=%v ok=%v", dirAgain, ok)
	}
	if reply.LocalIP != ipv4(10, 0, 0, 1) || reply.LocalPort != 1000 {
		t.Fatalf("second localize call mutated an already-canonical key: %+v", reply)
	}
}

func TestLocalizeNonLocalDrops(t *testing.T) {
	k := model.FlowKey{LocalIP: ipv4(8, 8, 8, 8), RemoteIP: ipv4(1, 1, 1, 1)}
	if _, ok := Localize(&k, isLocal10); ok {
		t.Fatalf("expected localize to report drop for an all-remote key")
	}
}

func newSmallTable() *Table {
	return NewTable(model.TableSizes{LipEntries: 128, RipEntries: 128, PortEntries: 128})
}

// Scenario 1 & 2 from spec.md §8: an outbound packet followed by its reply
// reuse the same LIP/RIP/Port entries and accumulate counters per direction.
func TestOutboundThenReplyReusesEntries(t *testing.T) {
	tbl := newSmallTable()
	local := ipv4(10, 0, 0, 1)
	remote := ipv4(8, 8, 8, 8)

	lip, err := tbl.InsertOrFindLIP(local)
	if err != nil {
		t.Fatalf("insert lip: %v", err)
	}
	rip, err := tbl.InsertOrFindRIP(lip, remote, model.DirOutbound)
	if err != nil {
		t.Fatalf("insert rip: %v", err)
	}
	port, err := tbl.InsertOrFindPort(lip, rip, model.ProtoTCP, 1000, 443, 100, model.DirOutbound)
	if err != nil {
		t.Fatalf("insert port: %v", err)
	}

	if tbl.info.NLips != 1 || tbl.info.NRips != 1 || tbl.info.NPorts != 1 {
		t.Fatalf("counts = %d/%d/%d, want 1/1/1", tbl.info.NLips, tbl.info.NRips, tbl.info.NPorts)
	}
	if lip.NDsts[model.DirOutbound] != 1 || lip.NSess[model.DirOutbound] != 1 {
		t.Fatalf("lip state = %+v", lip)
	}
	if rip.NPkts[model.DirOutbound][model.ProtoTCP] != 1 || rip.NBytes[model.DirOutbound][model.ProtoTCP] != 100 {
		t.Fatalf("rip state = %+v", rip)
	}

	// Reply: same LIP/RIP pair, direction inbound, port tuple swapped to
	// match the canonical (lport, rport) already recorded.
	rip2, err := tbl.InsertOrFindRIP(lip, remote, model.DirInbound)
	if err != nil {
		t.Fatalf("insert rip (reply): %v", err)
	}
	if rip2 != rip {
		t.Fatalf("reply did not reuse the same RIP entry")
	}
	port2, err := tbl.InsertOrFindPort(lip, rip, model.ProtoTCP, 1000, 443, 60, model.DirInbound)
	if err != nil {
		t.Fatalf("insert port (reply): %v", err)
	}
	if port2 != port {
		t.Fatalf("reply did not reuse the same Port entry")
	}

	if lip.NDsts[model.DirOutbound] != 1 {
		t.Fatalf("ndsts[OUT] changed on reply: %d", lip.NDsts[model.DirOutbound])
	}
	if rip.NPkts[model.DirInbound][model.ProtoTCP] != 1 || rip.NBytes[model.DirInbound][model.ProtoTCP] != 60 {
		t.Fatalf("rip inbound counters = %+v", rip)
	}
	if !port.SeenDirection(model.DirInbound) {
		t.Fatalf("port entry missing inbound direction bit")
	}
	if lip.NSess[model.DirOutbound] != 1 {
		t.Fatalf("reply should not create a new session: nsess[OUT]=%d", lip.NSess[model.DirOutbound])
	}
}

// Scenario 3: pna_connections=2, three distinct remotes from one LIP.
// CheckConnections runs after InsertOrFindLIP but before InsertOrFindRIP,
// so it compares the count from PRIOR packets only — the third remote (C)
// is the one blocked, before its RIP/Port entries are created, matching
// hooks.c's ndsts check placement.
func TestThresholdConnectionsPreUpdateCount(t *testing.T) {
	tbl := newSmallTable()
	th := Thresholds{Connections: 2}
	local := ipv4(10, 0, 0, 1)

	lip, _ := tbl.InsertOrFindLIP(local)
	remotes := []uint32{ipv4(1, 1, 1, 1), ipv4(2, 2, 2, 2), ipv4(3, 3, 3, 3)}

	for i, r := range remotes {
		v := CheckConnections(th, lip)
		if i < 2 && v.Breached {
			t.Fatalf("unexpected breach before remote %d: ndsts=%d", i, lip.NDsts[model.DirOutbound])
		}
		if i == 2 {
			if !v.Breached || v.Kind != model.AlertBlock || v.Reason != "too many connections" {
				t.Fatalf("expected connections breach before the third remote's RIP insert, got %+v", v)
			}
			break // hooks.c returns here: the RIP/Port entries are never created
		}
		if _, err := tbl.InsertOrFindRIP(lip, r, model.DirOutbound); err != nil {
			t.Fatalf("insert rip %d: %v", i, err)
		}
	}

	if lip.NDsts[model.DirOutbound] != 2 {
		t.Fatalf("ndsts[OUT] = %d, want 2 (third remote's RIP insert must not run)", lip.NDsts[model.DirOutbound])
	}
	if tbl.info.NRips != 2 {
		t.Fatalf("nrips = %d, want 2 (blocked packet's RIP entry must not be created)", tbl.info.NRips)
	}
}

func TestThresholdSessionsInboundWhitelist(t *testing.T) {
	tbl := newSmallTable()
	th := Thresholds{Sessions: 1}
	local := ipv4(10, 0, 0, 1)
	lip, _ := tbl.InsertOrFindLIP(local)
	rip, _ := tbl.InsertOrFindRIP(lip, ipv4(9, 9, 9, 9), model.DirInbound)
	_, _ = tbl.InsertOrFindPort(lip, rip, model.ProtoTCP, 2000, 80, 1, model.DirInbound)

	// CheckSession runs after InsertOrFindRIP but before InsertOrFindPort
	// for the packet that would create the SECOND inbound session; here it
	// is called after the first session already exists, so it observes
	// lip.NSess[IN] == 1 (the threshold) without that call's own
	// contribution, just as hooks.c does.
	v := CheckSession(th, lip, rip, model.ProtoTCP)
	if !v.Breached || v.Kind != model.AlertWhitelist || v.Reason != "external scan" {
		t.Fatalf("expected external-scan whitelist verdict, got %+v", v)
	}
}

// Scenario 4: a LIP table exactly ProbeLimit wide accepts exactly
// ProbeLimit distinct keys; the next insert overflows without disturbing
// prior entries.
func TestLIPOverflowAtProbeLimit(t *testing.T) {
	tbl := NewTable(model.TableSizes{LipEntries: ProbeLimit, RipEntries: 4, PortEntries: 4})
	for i := 0; i < ProbeLimit; i++ {
		if _, err := tbl.InsertOrFindLIP(ipv4(10, 0, byte(i>>8), byte(i))); err != nil {
			t.Fatalf("insert %d: unexpected overflow", i)
		}
	}
	if tbl.info.NLips != ProbeLimit {
		t.Fatalf("nlips = %d, want %d", tbl.info.NLips, ProbeLimit)
	}
	if _, err := tbl.InsertOrFindLIP(ipv4(11, 0, 0, 1)); err != ErrOverflow {
		t.Fatalf("expected ErrOverflow on a full table, got %v", err)
	}
	if _, err := tbl.InsertOrFindLIP(ipv4(11, 0, 0, 2)); err != ErrOverflow {
		t.Fatalf("expected ErrOverflow on a full table, got %v", err)
	}
	if tbl.info.NLipsMissed != 2 {
		t.Fatalf("nlips_missed = %d, want 2", tbl.info.NLipsMissed)
	}

	// Prior entries must remain intact.
	if _, err := tbl.InsertOrFindLIP(ipv4(10, 0, 0, 0)); err != nil {
		t.Fatalf("re-lookup of an existing key failed: %v", err)
	}
	if tbl.info.NLips != ProbeLimit {
		t.Fatalf("re-lookup of an existing key must not grow nlips: %d", tbl.info.NLips)
	}
}

func TestRIPOwnershipBitmapInvariant(t *testing.T) {
	tbl := newSmallTable()
	lip, _ := tbl.InsertOrFindLIP(ipv4(10, 0, 0, 1))
	remote := ipv4(4, 4, 4, 4)
	rip, err := tbl.InsertOrFindRIP(lip, remote, model.DirOutbound)
	if err != nil {
		t.Fatalf("insert rip: %v", err)
	}
	idx := -1
	for i := range tbl.info.Rips {
		if &tbl.info.Rips[i] == rip {
			idx = i
			break
		}
	}
	if idx < 0 {
		t.Fatalf("could not locate rip entry in backing array")
	}
	if !lip.Dsts.Test(uint32(idx)) {
		t.Fatalf("lip ownership bitmap missing bit for its own rip slot %d", idx)
	}
}
