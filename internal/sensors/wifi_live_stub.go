//go:build !pcap
// +build !pcap

package sensors

import (
	"fmt"

	"github.com/google/gopacket"
)

// OpenLiveBeaconSource is a stub implementation when live capture support is
// disabled. Build with -tags=pcap to enable monitor-mode beacon capture.
func OpenLiveBeaconSource(iface string) (gopacket.PacketDataSource, gopacket.Decoder, func(), error) {
	return nil, nil, nil, fmt.Errorf("%w: live capture not enabled, rebuild with -tags=pcap", ErrSensorUnavailable)
}
