package model

// LipEntry is a level-1 table row, keyed by local_ip. LocalIP == 0 means
// the slot is free; once claimed it is never cleared outside of Reset.
type LipEntry struct {
	LocalIP uint32
	NDsts   [Directions]uint32 // distinct remote IPs seen, per direction
	NSess   [Directions]uint32 // distinct (proto, lport, rport) sessions, per direction
	Dsts    Bitmap             // ownership bitmap over the RIP hash space
}

// Free reports whether this slot has never been claimed.
func (e *LipEntry) Free() bool { return e.LocalIP == 0 }

// RipEntry is a level-2 table row, keyed by (lip, remote_ip). RemoteIP == 0
// means free. A RIP slot is shared across whichever LIPs hash into it; a
// match requires both a key match AND the probing LIP's ownership bit.
type RipEntry struct {
	RemoteIP uint32
	InfoBits uint8 // bits 0-1: direction seen; bits 2-3: first-seen direction
	NPrts    [Directions][Protocols]uint32
	NBytes   [Directions][Protocols]uint64
	NPkts    [Directions][Protocols]uint64
	Prts     [Protocols]Bitmap // ownership bitmap over the port hash space, per protocol
}

// Free reports whether this slot has never been claimed.
func (e *RipEntry) Free() bool { return e.RemoteIP == 0 }

// SeenDirection reports whether direction d has been recorded.
func (e *RipEntry) SeenDirection(d Direction) bool {
	return e.InfoBits&(1<<uint(d)) != 0
}

// MarkDirection records that direction d has now been seen, and the first
// time this slot was ever claimed, also records which direction that was.
func (e *RipEntry) MarkDirection(d Direction, firstSeen bool) {
	e.InfoBits |= 1 << uint(d)
	if firstSeen {
		e.InfoBits |= 1 << uint(d+Directions)
	}
}

// PortEntry is a level-3 table row, keyed by (rip, proto, lport, rport).
// Both ports == 0 means free.
type PortEntry struct {
	LocalPort  uint16
	RemotePort uint16
	InfoBits   uint8 // bits 0-1: direction seen; bits 2-3: first-seen direction
	NBytes     [Directions]uint64
	NPkts      [Directions]uint64
	Timestamp  int64 // first-seen wall clock, unix seconds
}

// Free reports whether this slot has never been claimed.
func (e *PortEntry) Free() bool { return e.LocalPort == 0 && e.RemotePort == 0 }

// SeenDirection reports whether direction d has been recorded.
func (e *PortEntry) SeenDirection(d Direction) bool {
	return e.InfoBits&(1<<uint(d)) != 0
}

// MarkDirection records that direction d has now been seen, and the first
// time this slot was ever claimed, also records which direction that was.
func (e *PortEntry) MarkDirection(d Direction, firstSeen bool) {
	e.InfoBits |= 1 << uint(d)
	if firstSeen {
		e.InfoBits |= 1 << uint(d+Directions)
	}
}

// TableSizes controls the capacity of the three levels of a TableInfo.
// Sizes should be powers of two; NewTableInfo rounds up if not.
type TableSizes struct {
	LipEntries  int
	RipEntries  int
	PortEntries int
}

// DefaultTableSizes derives level sizes from a single flow-entries capacity
// hint (spec.md §6's pna_flow_entries), the way PNA_LIP_BITS/RIP_BITS/
// PORT_BITS would be picked for a given deployment: local hosts are scarce
// relative to remote destinations, and sessions are the most numerous, so
// each level gets progressively more room.
func DefaultTableSizes(flowEntries int) TableSizes {
	if flowEntries <= 0 {
		flowEntries = 1 << 16
	}
	return TableSizes{
		LipEntries:  nextPow2(flowEntries / 64),
		RipEntries:  nextPow2(flowEntries / 4),
		PortEntries: nextPow2(flowEntries),
	}
}

func nextPow2(n int) int {
	if n < 4 {
		return 4
	}
	p := 4
	for p < n {
		p <<= 1
	}
	return p
}

// TableInfo is one CPU/shard's complete flow table: the three levels plus
// the insertion/miss counters spec.md §3 requires
// (NLips + NLipsMissed == level-1 insertion attempts, etc).
type TableInfo struct {
	Sizes TableSizes

	Lips []LipEntry
	Rips []RipEntry
	Ports [Protocols][]PortEntry

	NLips, NRips, NPorts                   uint64
	NLipsMissed, NRipsMissed, NPortsMissed uint64
}

// NewTableInfo allocates a zeroed TableInfo of the given sizes.
func NewTableInfo(sizes TableSizes) *TableInfo {
	sizes.LipEntries = nextPow2(sizes.LipEntries)
	sizes.RipEntries = nextPow2(sizes.RipEntries)
	sizes.PortEntries = nextPow2(sizes.PortEntries)
	t := &TableInfo{Sizes: sizes}
	t.alloc()
	return t
}

func (t *TableInfo) alloc() {
	t.Lips = make([]LipEntry, t.Sizes.LipEntries)
	for i := range t.Lips {
		t.Lips[i].Dsts = NewBitmap(t.Sizes.RipEntries)
	}
	t.Rips = make([]RipEntry, t.Sizes.RipEntries)
	for i := range t.Rips {
		t.Rips[i].Prts[ProtoTCP] = NewBitmap(t.Sizes.PortEntries)
		t.Rips[i].Prts[ProtoUDP] = NewBitmap(t.Sizes.PortEntries)
	}
	t.Ports[ProtoTCP] = make([]PortEntry, t.Sizes.PortEntries)
	t.Ports[ProtoUDP] = make([]PortEntry, t.Sizes.PortEntries)
}

// Reset zeroes every level and every counter, keeping the allocated
// capacity (spec.md §3's flush/reset collaborator: "log + zero").
func (t *TableInfo) Reset() {
	t.alloc()
	t.NLips, t.NRips, t.NPorts = 0, 0, 0
	t.NLipsMissed, t.NRipsMissed, t.NPortsMissed = 0, 0, 0
}
