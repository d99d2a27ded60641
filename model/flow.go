// Package model holds the wire and accounting data types shared by the
// flow engine: the canonical flow identity, the three-level table rows,
// and the small enums that tag direction, protocol, and alert kind.
package model

// Direction is which way a packet travelled relative to the local host.
type Direction uint8

const (
	// DirInbound is remote -> local.
	DirInbound Direction = 0
	// DirOutbound is local -> remote.
	DirOutbound Direction = 1
)

// Directions is the number of direction values (used to size [2]-arrays).
const Directions = 2

func (d Direction) String() string {
	if d == DirOutbound {
		return "outbound"
	}
	return "inbound"
}

// Proto is the transport protocol, indexed into the level-3 per-protocol
// tables and bitmaps.
type Proto uint8

const (
	ProtoTCP Proto = 0
	ProtoUDP Proto = 1
)

// Protocols is the number of protocol values (used to size [2]-arrays).
const Protocols = 2

func (p Proto) String() string {
	if p == ProtoUDP {
		return "udp"
	}
	return "tcp"
}

// AlertKind is the category of a session_action alert.
type AlertKind uint8

const (
	AlertBlock AlertKind = iota
	AlertWhitelist
)

func (k AlertKind) String() string {
	if k == AlertWhitelist {
		return "whitelist"
	}
	return "block"
}

// FlowKey is the canonical flow identity: {l3_protocol, l4_protocol,
// local_ip, remote_ip, local_port, remote_port}. Decode fills it
// provisionally (local = source, remote = dest); Localize canonicalizes it
// so that local_ip is always the monitored-host side.
type FlowKey struct {
	L3Protocol uint16
	L4Protocol Proto
	LocalIP    uint32
	RemoteIP   uint32
	LocalPort  uint16
	RemotePort uint16
}

// Swap exchanges the local/remote sides of the key in place. Used by
// Localize when the packet's destination, not its source, is local.
func (k *FlowKey) Swap() {
	k.LocalIP, k.RemoteIP = k.RemoteIP, k.LocalIP
	k.LocalPort, k.RemotePort = k.RemotePort, k.LocalPort
}
