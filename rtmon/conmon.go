package rtmon

import (
	"sync"
	"time"

	"github.com/ftahirops/pna/hashmap"
	"github.com/ftahirops/pna/model"
)

// connKey is one (local, remote) pair conmon tracks.
type connKey struct {
	local, remote uint32
}

func connKeyBytes(k connKey) []byte {
	return []byte{
		byte(k.local >> 24), byte(k.local >> 16), byte(k.local >> 8), byte(k.local),
		byte(k.remote >> 24), byte(k.remote >> 16), byte(k.remote >> 8), byte(k.remote),
	}
}

// ConnMonitor tracks, per local IP, the set of distinct outbound remote
// IPs seen recently. It runs as one rtmon stage and is read by the live
// view as an independent, continuously aged cross-check on the per-shard
// FlowTable's lip.ndsts counters.
type ConnMonitor struct {
	capacity int
	maxAge   time.Duration

	mu    sync.Mutex
	state *hashmap.Map[connKey, *time.Time]
}

// NewConnMonitor creates a conmon stage with room for capacity distinct
// (local, remote) pairs, each aged out maxAge after its last sighting.
func NewConnMonitor(capacity int, maxAge time.Duration) *ConnMonitor {
	return &ConnMonitor{capacity: capacity, maxAge: maxAge}
}

func (c *ConnMonitor) Name() string { return "conmon" }

func (c *ConnMonitor) Init() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = hashmap.New[connKey, *time.Time](c.capacity, connKeyBytes)
	return nil
}

func (c *ConnMonitor) Hook(pd PipeData) error {
	if pd.Dir != model.DirOutbound {
		return nil
	}
	k := connKey{local: pd.Key.LocalIP, remote: pd.Key.RemoteIP}
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if seen, ok := c.state.Get(k); ok {
		*seen = now
		return nil
	}
	c.state.Put(k, &now)
	return nil
}

// Clean rebuilds the state map keeping only pairs seen within maxAge.
// Runs on the shared clean timer's goroutine, guarded by the same mutex
// Hook uses, per spec.md §9's note that hook/clean share monitor state.
func (c *ConnMonitor) Clean() {
	now := time.Now()
	fresh := hashmap.New[connKey, *time.Time](c.capacity, connKeyBytes)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Each(func(k connKey, seen *time.Time) {
		if now.Sub(*seen) < c.maxAge {
			fresh.Put(k, seen)
		}
	})
	c.state = fresh
}

func (c *ConnMonitor) Release() {}

// Count reports how many distinct outbound remote IPs conmon currently
// tracks for localIP.
func (c *ConnMonitor) Count(localIP uint32) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	c.state.Each(func(k connKey, _ *time.Time) {
		if k.local == localIP {
			n++
		}
	})
	return n
}

// Len reports the total number of distinct (local, remote) pairs conmon
// currently tracks across all local hosts.
func (c *ConnMonitor) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Len()
}
