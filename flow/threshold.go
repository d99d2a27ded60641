package flow

import "github.com/ftahirops/pna/model"

// Thresholds holds the per-host caps from spec.md §6 (pna_connections,
// pna_sessions, pna_ports, pna_bytes, pna_packets). A zero value for any
// field disables that particular check.
type Thresholds struct {
	Connections uint32 // max distinct outbound remote IPs per local IP
	Sessions    uint32 // max distinct port-tuple sessions per local IP
	Ports       uint32 // max distinct outbound ports per (rip, proto)
	Bytes       uint64 // max outbound bytes per (rip, proto)
	Packets     uint64 // max outbound packets per (rip, proto)
}

// Verdict is the result of evaluating Thresholds against one packet's
// updated entries: whether a threshold breached and, if so, the alert to
// raise.
type Verdict struct {
	Breached bool
	Kind     model.AlertKind
	Reason   string
}

// CheckConnections evaluates the connections threshold, matching
// hooks.c's nf_ses_watch_hook: called after InsertOrFindLIP but before
// InsertOrFindRIP, so lip.NDsts still reflects prior packets only — the
// first packet to arrive after the count has reached the threshold is the
// one blocked, before its own RIP/Port entries are created.
func CheckConnections(th Thresholds, lip *model.LipEntry) Verdict {
	if th.Connections > 0 && lip.NDsts[model.DirOutbound] >= th.Connections {
		return Verdict{Breached: true, Kind: model.AlertBlock, Reason: "too many connections"}
	}
	return Verdict{}
}

// CheckSession evaluates the ports/bytes/packets/sessions thresholds in
// the fixed order spec.md §4.3 defines, stopping at the first breach.
// Called after InsertOrFindRIP but before InsertOrFindPort: rip's and
// lip's per-port/session counters are only updated inside
// InsertOrFindPort, so they still reflect prior packets only.
func CheckSession(th Thresholds, lip *model.LipEntry, rip *model.RipEntry, proto model.Proto) Verdict {
	switch {
	case th.Ports > 0 && rip.NPrts[model.DirOutbound][proto] >= th.Ports:
		return Verdict{Breached: true, Kind: model.AlertBlock, Reason: "too many ports"}
	case th.Bytes > 0 && rip.NBytes[model.DirOutbound][proto] >= th.Bytes:
		return Verdict{Breached: true, Kind: model.AlertBlock, Reason: "too many bytes"}
	case th.Packets > 0 && rip.NPkts[model.DirOutbound][proto] >= th.Packets:
		return Verdict{Breached: true, Kind: model.AlertBlock, Reason: "too many packets"}
	case th.Sessions > 0 && lip.NSess[model.DirOutbound] >= th.Sessions:
		return Verdict{Breached: true, Kind: model.AlertBlock, Reason: "too many sessions"}
	case th.Sessions > 0 && lip.NSess[model.DirInbound] >= th.Sessions:
		return Verdict{Breached: true, Kind: model.AlertWhitelist, Reason: "external scan"}
	default:
		return Verdict{}
	}
}
