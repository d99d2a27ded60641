package flow

import (
	"errors"
	"time"

	"github.com/ftahirops/pna/model"
)

// ProbeLimit bounds linear probing on every level of the table (spec.md
// §4.3/§6). A probe that exhausts this many slots without finding a match
// or a free slot gives up; the table is considered full for that key.
const ProbeLimit = 128

// ErrOverflow is returned when a level's table is full for the probed key.
// It is not a failure condition the caller need log loudly — overflow is
// logged at debug level and the packet is silently dropped, per spec.md §7.
var ErrOverflow = errors.New("flow: table full for key (overflow)")

// Table is one shard's three-level flow table: LIP -> RIP -> Port, plus
// the insertion/miss counters spec.md §3 requires.
type Table struct {
	info *model.TableInfo
}

// NewTable allocates a table of the given sizes.
func NewTable(sizes model.TableSizes) *Table {
	return &Table{info: model.NewTableInfo(sizes)}
}

// Info exposes the underlying counters and levels (for metrics export and
// the flush/reset collaborator).
func (t *Table) Info() *model.TableInfo { return t.info }

// Reset zeroes every level and counter, keeping the allocated capacity.
func (t *Table) Reset() { t.info.Reset() }

// hashLong mixes v into an avalanched 32-bit value and folds it down to
// the index space [0, size), mirroring hash_long's integer-hash-then-mask
// contract. size must be a power of two.
func hashLong(v uint32, size int) int {
	v ^= v >> 16
	v *= 0x85ebca6b
	v ^= v >> 13
	v *= 0xc2b2ae35
	v ^= v >> 16
	return int(v) & (size - 1)
}

// InsertOrFindLIP implements do_lip_entry: probe up to ProbeLimit slots
// hashed from localIP, claim the first free slot or return the existing
// match.
func (t *Table) InsertOrFindLIP(localIP uint32) (*model.LipEntry, error) {
	n := len(t.info.Lips)
	h := hashLong(localIP, n)
	for i := 0; i < ProbeLimit; i++ {
		slot := &t.info.Lips[(h+i)%n]
		if slot.LocalIP == localIP {
			return slot, nil
		}
		if slot.Free() {
			slot.LocalIP = localIP
			slot.Dsts = model.NewBitmap(len(t.info.Rips))
			t.info.NLips++
			return slot, nil
		}
	}
	t.info.NLipsMissed++
	return nil, ErrOverflow
}

// InsertOrFindRIP implements do_rip_entry: probe the shared RIP slot space
// hashed from localIP^remoteIP, gated by the LIP's ownership bitmap so
// slots can be shared across LIPs without collision.
func (t *Table) InsertOrFindRIP(lip *model.LipEntry, remoteIP uint32, dir model.Direction) (*model.RipEntry, error) {
	n := len(t.info.Rips)
	h := hashLong(lip.LocalIP^remoteIP, n)
	for i := 0; i < ProbeLimit; i++ {
		idx := uint32((h + i) % n)
		slot := &t.info.Rips[idx]

		if lip.Dsts.Test(idx) && slot.RemoteIP == remoteIP {
			if !slot.SeenDirection(dir) {
				slot.MarkDirection(dir, false)
				lip.NDsts[dir]++
			}
			return slot, nil
		}

		if slot.Free() {
			lip.Dsts.Set(idx)
			slot.RemoteIP = remoteIP
			lip.NDsts[dir]++
			slot.MarkDirection(dir, true)
			t.info.NRips++
			return slot, nil
		}
	}
	t.info.NRipsMissed++
	return nil, ErrOverflow
}

// InsertOrFindPort implements do_port_entry: probe the shared port slot
// space hashed from remoteIP^((rport<<16)|lport), gated by the RIP's
// per-protocol ownership bitmap. Byte/packet counters are updated on both
// the RIP and the Port entry on every packet, matched or newly claimed.
func (t *Table) InsertOrFindPort(lip *model.LipEntry, rip *model.RipEntry, proto model.Proto, lport, rport uint16, length int, dir model.Direction) (*model.PortEntry, error) {
	ports := t.info.Ports[proto]
	n := len(ports)
	h := hashLong(rip.RemoteIP^(uint32(rport)<<16|uint32(lport)), n)

	for i := 0; i < ProbeLimit; i++ {
		idx := uint32((h + i) % n)
		slot := &ports[idx]

		owned := rip.Prts[proto].Test(idx)
		if owned && slot.LocalPort == lport && slot.RemotePort == rport {
			rip.NBytes[dir][proto] += uint64(length)
			rip.NPkts[dir][proto]++
			slot.NBytes[dir] += uint64(length)
			slot.NPkts[dir]++
			if !slot.SeenDirection(dir) {
				slot.MarkDirection(dir, false)
				rip.NPrts[dir][proto]++
			}
			return slot, nil
		}

		if slot.Free() {
			rip.Prts[proto].Set(idx)
			slot.LocalPort = lport
			slot.RemotePort = rport
			slot.Timestamp = time.Now().Unix()

			rip.NBytes[dir][proto] += uint64(length)
			rip.NPkts[dir][proto]++
			slot.NBytes[dir] += uint64(length)
			slot.NPkts[dir]++
			rip.NPrts[dir][proto]++
			slot.MarkDirection(dir, true)

			lip.NSess[dir]++
			t.info.NPorts++
			return slot, nil
		}
	}
	t.info.NPortsMissed++
	return nil, ErrOverflow
}
