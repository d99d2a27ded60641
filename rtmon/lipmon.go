package rtmon

import (
	"sync"
	"time"

	"github.com/ftahirops/pna/hashmap"
	"github.com/ftahirops/pna/model"
)

func uint32Bytes(k uint32) []byte {
	return []byte{byte(k >> 24), byte(k >> 16), byte(k >> 8), byte(k)}
}

// HostStats is lipmon's per-local-IP traffic rollup.
type HostStats struct {
	Bytes    [model.Directions]uint64
	Packets  [model.Directions]uint64
	LastSeen time.Time
}

// LipMonitor maintains a rolling per-local-IP traffic summary for the
// live view, independent of the per-shard FlowTable — it ages out idle
// hosts on its own schedule rather than only growing until flush/reset.
type LipMonitor struct {
	capacity int
	maxAge   time.Duration

	mu    sync.Mutex
	state *hashmap.Map[uint32, *HostStats]
}

// NewLipMonitor creates a lipmon stage with room for capacity distinct
// local IPs, each aged out maxAge after its last packet.
func NewLipMonitor(capacity int, maxAge time.Duration) *LipMonitor {
	return &LipMonitor{capacity: capacity, maxAge: maxAge}
}

func (l *LipMonitor) Name() string { return "lipmon" }

func (l *LipMonitor) Init() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = hashmap.New[uint32, *HostStats](l.capacity, uint32Bytes)
	return nil
}

func (l *LipMonitor) Hook(pd PipeData) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	hs, ok := l.state.Get(pd.Key.LocalIP)
	if !ok {
		hs = &HostStats{}
		if !l.state.Put(pd.Key.LocalIP, hs) {
			return nil
		}
	}
	hs.Bytes[pd.Dir] += uint64(pd.Length)
	hs.Packets[pd.Dir]++
	hs.LastSeen = time.Now()
	return nil
}

// Clean rebuilds the state map keeping only hosts seen within maxAge.
func (l *LipMonitor) Clean() {
	now := time.Now()
	fresh := hashmap.New[uint32, *HostStats](l.capacity, uint32Bytes)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.Each(func(k uint32, hs *HostStats) {
		if now.Sub(hs.LastSeen) < l.maxAge {
			fresh.Put(k, hs)
		}
	})
	l.state = fresh
}

func (l *LipMonitor) Release() {}

// Snapshot returns a point-in-time copy of every tracked host's rollup.
func (l *LipMonitor) Snapshot() map[uint32]HostStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[uint32]HostStats, l.state.Len())
	l.state.Each(func(k uint32, hs *HostStats) {
		out[k] = *hs
	})
	return out
}
