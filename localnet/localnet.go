// Package localnet implements the is_local(ip) -> bool oracle spec.md §6
// and §7 treat as an opaque external collaborator (the original's
// "dtrie"), backed by a real longest-prefix-match routing table instead
// of a hand-rolled trie.
package localnet

import (
	"bufio"
	"fmt"
	"net/netip"
	"os"
	"strings"

	"github.com/gaissmai/bart"
)

// Table is a set of local networks, queried by longest-prefix membership.
type Table struct {
	t bart.Table[struct{}]
}

// New builds an empty Table; add networks with AddCIDR or Load.
func New() *Table {
	return &Table{}
}

// AddCIDR registers one network in CIDR notation (e.g. "10.0.0.0/8").
func (t *Table) AddCIDR(cidr string) error {
	pfx, err := netip.ParsePrefix(cidr)
	if err != nil {
		return fmt.Errorf("localnet: parse %q: %w", cidr, err)
	}
	t.t.Update(pfx, func(struct{}, bool) struct{} { return struct{}{} })
	return nil
}

// Load reads one CIDR per line from path (the -n networks_file CLI flag),
// skipping blank lines and '#' comments.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("localnet: open %s: %w", path, err)
	}
	defer f.Close()

	t := New()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := t.AddCIDR(line); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("localnet: read %s: %w", path, err)
	}
	return t, nil
}

// IsLocal reports whether ip (packed big-endian uint32) belongs to any
// registered network. This is the is_local collaborator flow.Localize
// calls.
func (t *Table) IsLocal(ip uint32) bool {
	addr := netip.AddrFrom4([4]byte{byte(ip >> 24), byte(ip >> 16), byte(ip >> 8), byte(ip)})
	return t.t.Contains(addr)
}
