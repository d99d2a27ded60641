package dispatch

import (
	"github.com/ftahirops/pna/decode"
	"github.com/ftahirops/pna/model"
)

// Manager owns the shared Decoder and routes each decoded packet to the
// shard whose Dispatcher exclusively owns the flow entries for that key.
// Routing hashes local_ip XOR remote_ip, which is symmetric under
// Localize's swap — a reply always lands on the same shard as the
// request that created the flow.
type Manager struct {
	decoder *decode.Decoder
	shards  []*Dispatcher
}

// NewManager builds a Manager over an already-constructed set of shard
// Dispatchers.
func NewManager(shards []*Dispatcher) *Manager {
	return &Manager{decoder: decode.New(), shards: shards}
}

// Dispatch decodes one captured frame and routes it to its shard. A
// decode failure (unsupported framing/protocol) is silently dropped, per
// spec.md §4.2.
func (m *Manager) Dispatch(data []byte, length int) {
	key, err := m.decoder.Decode(data, length)
	if err != nil {
		return
	}
	idx := shardFor(key, len(m.shards))
	m.shards[idx].HandleKey(key, length)
}

func shardFor(key model.FlowKey, n int) int {
	if n <= 1 {
		return 0
	}
	h := key.LocalIP ^ key.RemoteIP
	return int(h % uint32(n))
}
