// Package flow holds the canonical flow identity, the direction
// classifier, and the three-level per-shard accounting table, ported from
// original_source/module/pna_main.c (pna_localize) and
// original_source/module/hooks.c (do_lip_entry/do_rip_entry/do_port_entry).
package flow

import "github.com/ftahirops/pna/model"

// IsLocal reports whether ip belongs to a monitored local network. It is
// the external longest-prefix-match oracle (spec.md §6's is_local), bound
// in this module to the localnet package.
type IsLocal func(ip uint32) bool

// Localize canonicalizes key in place so that LocalIP is always the
// monitored-host side, and reports the packet's direction. A packet whose
// neither endpoint is local returns ok=false and the caller must drop it.
//
// Mirrors pna_localize: outbound packets (source local) are left
// untouched; inbound packets (destination local) have both the IP and
// port pairs swapped.
func Localize(key *model.FlowKey, isLocal IsLocal) (dir model.Direction, ok bool) {
	if isLocal(key.LocalIP) {
		return model.DirOutbound, true
	}
	if isLocal(key.RemoteIP) {
		key.Swap()
		return model.DirInbound, true
	}
	return 0, false
}
