// Package decode turns captured frames into provisional flow keys. It
// implements spec.md §4.2's decode contract on top of gopacket's layer
// parsers instead of hand-rolled byte offsets, in the style the retrieval
// pack's netcap-derived decoder files parse live traffic.
package decode

import (
	"errors"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/ftahirops/pna/model"
)

// ErrUnsupported is returned for any frame outside the decode contract:
// non-Ethernet framing, non-IPv4 L3, or a transport other than TCP/UDP.
// It is not logged as an error — spec.md §4.2 treats it as a silent drop.
var ErrUnsupported = errors.New("decode: unsupported frame")

// Decoder parses raw frames into a provisional model.FlowKey. A single
// Decoder (dispatch.Manager's) is reused across packets for every shard,
// from one goroutine; it is not safe for concurrent use, matching
// gopacket's own DecodingLayerParser guidance.
type Decoder struct {
	eth layers.Ethernet
	ip4 layers.IPv4
	tcp layers.TCP
	udp layers.UDP

	parser  *gopacket.DecodingLayerParser
	decoded []gopacket.LayerType
}

// New builds a Decoder that recognizes Ethernet -> IPv4 -> {TCP,UDP}.
func New() *Decoder {
	d := &Decoder{}
	d.parser = gopacket.NewDecodingLayerParser(
		layers.LayerTypeEthernet,
		&d.eth, &d.ip4, &d.tcp, &d.udp,
	)
	d.parser.IgnoreUnsupported = true
	return d
}

// Decode parses data (length is the original on-wire length, which may
// exceed len(data) for a truncated capture snapshot) into a provisional
// FlowKey: local = source, remote = destination. Localize must run
// afterward to canonicalize direction.
func (d *Decoder) Decode(data []byte, length int) (model.FlowKey, error) {
	var key model.FlowKey

	if err := d.parser.DecodeLayers(data, &d.decoded); err != nil {
		return key, ErrUnsupported
	}

	var sawIP4, sawTCP, sawUDP bool
	for _, lt := range d.decoded {
		switch lt {
		case layers.LayerTypeIPv4:
			sawIP4 = true
		case layers.LayerTypeTCP:
			sawTCP = true
		case layers.LayerTypeUDP:
			sawUDP = true
		}
	}
	if !sawIP4 || (!sawTCP && !sawUDP) {
		return key, ErrUnsupported
	}

	key.L3Protocol = uint16(layers.EthernetTypeIPv4)
	key.LocalIP = ipToUint32(d.ip4.SrcIP)
	key.RemoteIP = ipToUint32(d.ip4.DstIP)

	switch {
	case sawTCP:
		key.L4Protocol = model.ProtoTCP
		key.LocalPort = uint16(d.tcp.SrcPort)
		key.RemotePort = uint16(d.tcp.DstPort)
	case sawUDP:
		key.L4Protocol = model.ProtoUDP
		key.LocalPort = uint16(d.udp.SrcPort)
		key.RemotePort = uint16(d.udp.DstPort)
	}

	return key, nil
}

func ipToUint32(ip []byte) uint32 {
	if len(ip) == 16 {
		ip = ip[12:16]
	}
	if len(ip) != 4 {
		return 0
	}
	return uint32(ip[0])<<24 | uint32(ip[1])<<16 | uint32(ip[2])<<8 | uint32(ip[3])
}
