package decode

import (
	"github.com/google/gopacket/pcap"
)

// PcapSource wraps a live libpcap capture handle, the ambient packet
// source the dispatcher pulls frames from. It is the userspace-capture
// equivalent of the kernel hook spec.md §7 names as an external
// collaborator out of scope for the core.
type PcapSource struct {
	handle *pcap.Handle
}

// OpenLive opens iface for capture. snaplen bounds how much of each frame
// is copied; promisc enables promiscuous mode.
func OpenLive(iface string, snaplen int32, promisc bool) (*PcapSource, error) {
	handle, err := pcap.OpenLive(iface, snaplen, promisc, pcap.BlockForever)
	if err != nil {
		return nil, err
	}
	return &PcapSource{handle: handle}, nil
}

// SetFilter installs a BPF filter expression (config.Config.Filter, set
// from the JSON config or the env file's PNA_FILTER key; there is no CLI
// flag for it). An empty expression installs nothing.
func (s *PcapSource) SetFilter(expr string) error {
	if expr == "" {
		return nil
	}
	return s.handle.SetBPFFilter(expr)
}

// ReadPacketData returns the next captured frame and its original
// (possibly truncated) wire length.
func (s *PcapSource) ReadPacketData() (data []byte, length int, err error) {
	data, ci, err := s.handle.ZeroCopyReadPacketData()
	if err != nil {
		return nil, 0, err
	}
	return data, ci.Length, nil
}

// Close releases the capture handle.
func (s *PcapSource) Close() {
	s.handle.Close()
}
