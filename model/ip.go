package model

import "fmt"

// IPString renders a host-order IPv4 address as a dotted quad, the
// canonical textual form used across logs, alerts, and the live view.
func IPString(ip uint32) string {
	return fmt.Sprintf("%d.%d.%d.%d", byte(ip>>24), byte(ip>>16), byte(ip>>8), byte(ip))
}
