package localnet

import "testing"

func ipv4(a, b, c, d byte) uint32 {
	return uint32(a)<<24 | uint32(b)<<16 | uint32(c)<<8 | uint32(d)
}

func TestIsLocalExactPrefixBoundary(t *testing.T) {
	tbl := New()
	if err := tbl.AddCIDR("10.0.0.0/8"); err != nil {
		t.Fatalf("add cidr: %v", err)
	}
	if !tbl.IsLocal(ipv4(10, 0, 0, 0)) {
		t.Fatalf("network address itself should be local")
	}
	if !tbl.IsLocal(ipv4(10, 255, 255, 255)) {
		t.Fatalf("broadcast of the local network should be local")
	}
	if tbl.IsLocal(ipv4(11, 0, 0, 1)) {
		t.Fatalf("address outside the prefix reported local")
	}
}

func TestIsLocalMultipleNetworks(t *testing.T) {
	tbl := New()
	tbl.AddCIDR("10.0.0.0/8")
	tbl.AddCIDR("192.168.1.0/24")
	if !tbl.IsLocal(ipv4(192, 168, 1, 42)) {
		t.Fatalf("expected 192.168.1.42 to be local")
	}
	if tbl.IsLocal(ipv4(192, 168, 2, 1)) {
		t.Fatalf("192.168.2.1 is outside the /24 and should not be local")
	}
}

func TestEmptyTableNothingIsLocal(t *testing.T) {
	tbl := New()
	if tbl.IsLocal(ipv4(127, 0, 0, 1)) {
		t.Fatalf("empty table should treat every address as non-local")
	}
}
