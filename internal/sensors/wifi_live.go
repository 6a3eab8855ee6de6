//go:build pcap
// +build pcap

package sensors

import (
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"
)

// OpenLiveBeaconSource opens a live capture on a monitor-mode interface and
// returns it as a packet source for the beacon sensor. Only available when
// building with the 'pcap' build tag.
func OpenLiveBeaconSource(iface string) (gopacket.PacketDataSource, gopacket.Decoder, func(), error) {
	handle, err := pcap.OpenLive(iface, 2048, true, pcap.BlockForever)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: open live capture on %s: %v", ErrSensorUnavailable, iface, err)
	}

	// Beacon frames only; everything else is noise for this sensor.
	if err := handle.SetBPFFilter("type mgt subtype beacon"); err != nil {
		handle.Close()
		return nil, nil, nil, fmt.Errorf("set beacon filter on %s: %w", iface, err)
	}

	return handle, handle.LinkType(), handle.Close, nil
}
