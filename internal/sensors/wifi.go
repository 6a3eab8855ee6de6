package sensors

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/skywatch-data/skywatch/internal/monitoring"
	"github.com/skywatch-data/skywatch/internal/tracker"
)

// knownEmitterOUIs maps 802.11 manufacturer OUI prefixes to the device maker.
// Beacons from unknown OUIs are ignored.
var knownEmitterOUIs = map[string]string{
	"90:3a:e6": "DJI",
	"60:60:1f": "DJI",
	"a0:14:3d": "Parrot",
	"90:03:b7": "Parrot",
	"00:12:1c": "Yuneec",
}

// BeaconSensor watches 802.11 management beacon frames for emitters whose
// BSSID matches a known manufacturer OUI and converts each sighting into a
// detection event. The packet source abstraction allows live radiotap
// capture (pcap build tag) and replayed frames in tests.
type BeaconSensor struct {
	source  gopacket.PacketDataSource
	decoder gopacket.Decoder
	sink    Sink
	locator Locator

	// ThresholdDBm filters out weak signals; beacons with a known power
	// below it are ignored. Power is only known when a radiotap header is
	// present.
	ThresholdDBm float64
}

// NewBeaconSensor creates a beacon sensor draining the given packet source.
// decoder selects the first layer of the frames the source yields (radiotap
// for live capture, Dot11 for raw frames).
func NewBeaconSensor(source gopacket.PacketDataSource, decoder gopacket.Decoder, sink Sink, locator Locator, thresholdDBm float64) *BeaconSensor {
	return &BeaconSensor{
		source:       source,
		decoder:      decoder,
		sink:         sink,
		locator:      locator,
		ThresholdDBm: thresholdDBm,
	}
}

// Name implements the sensor identity used in startup logs.
func (s *BeaconSensor) Name() string { return "wifi_beacon" }

// Run consumes packets until the context is cancelled or the source is
// exhausted. Frames that are not known-OUI beacons are skipped silently;
// decode errors are skipped too, a noisy capture never stops the sensor.
func (s *BeaconSensor) Run(ctx context.Context) error {
	packets := gopacket.NewPacketSource(s.source, s.decoder).Packets()
	for {
		select {
		case <-ctx.Done():
			return nil
		case packet, ok := <-packets:
			if !ok {
				monitoring.Logf("wifi beacon sensor: packet source exhausted")
				return nil
			}
			if ev, ok := s.eventFromPacket(packet); ok {
				submit(s.sink, s.locator, ev)
			}
		}
	}
}

// eventFromPacket extracts a detection event from one captured frame.
func (s *BeaconSensor) eventFromPacket(packet gopacket.Packet) (tracker.DetectionEvent, bool) {
	dot11, _ := packet.Layer(layers.LayerTypeDot11).(*layers.Dot11)
	if dot11 == nil || dot11.Type != layers.Dot11TypeMgmtBeacon {
		return tracker.DetectionEvent{}, false
	}

	b := beacon{
		BSSID: dot11.Address3,
		SSID:  beaconSSID(packet),
	}
	if rt, _ := packet.Layer(layers.LayerTypeRadioTap).(*layers.RadioTap); rt != nil && rt.Present.DBMAntennaSignal() {
		p := float64(rt.DBMAntennaSignal)
		b.PowerDBm = &p
	}
	return s.eventFromBeacon(b, time.Now())
}

// beacon is the decoded subset of a beacon frame the sensor acts on.
type beacon struct {
	BSSID    net.HardwareAddr
	SSID     string
	PowerDBm *float64 // nil when no radiotap signal field was present
}

// eventFromBeacon applies the OUI allowlist and signal threshold, deriving
// the emitter key from the BSSID suffix. The key is stable per radio, so
// repeated beacons from one emitter merge into one track.
func (s *BeaconSensor) eventFromBeacon(b beacon, now time.Time) (tracker.DetectionEvent, bool) {
	manufacturer, known := classifyOUI(b.BSSID)
	if !known {
		return tracker.DetectionEvent{}, false
	}

	power := 0.0
	if b.PowerDBm != nil {
		power = *b.PowerDBm
		if power <= s.ThresholdDBm {
			return tracker.DetectionEvent{}, false
		}
	}

	classification := manufacturer
	if b.SSID != "" {
		classification = fmt.Sprintf("%s (%s)", manufacturer, b.SSID)
	}

	return tracker.DetectionEvent{
		SourceKind:     tracker.SourceWiFiBeacon,
		EmitterID:      wifiEmitterID(b.BSSID),
		Timestamp:      now,
		SignalPower:    power,
		Classification: classification,
	}, true
}

// classifyOUI looks up the manufacturer for a BSSID's first three octets.
func classifyOUI(bssid net.HardwareAddr) (string, bool) {
	if len(bssid) < 3 {
		return "", false
	}
	oui := fmt.Sprintf("%02x:%02x:%02x", bssid[0], bssid[1], bssid[2])
	manufacturer, ok := knownEmitterOUIs[oui]
	return manufacturer, ok
}

// wifiEmitterID derives the registry key from the BSSID suffix. Distinct
// radios sharing a suffix collide; that is the documented upstream key
// derivation limit.
func wifiEmitterID(bssid net.HardwareAddr) string {
	suffix := bssid
	if len(bssid) > 3 {
		suffix = bssid[len(bssid)-3:]
	}
	var sb strings.Builder
	for _, b := range suffix {
		fmt.Fprintf(&sb, "%02x", b)
	}
	return "WIFI_" + sb.String()
}

// beaconSSID finds the SSID information element, if any.
func beaconSSID(packet gopacket.Packet) string {
	for _, layer := range packet.Layers() {
		ie, ok := layer.(*layers.Dot11InformationElement)
		if !ok || ie.ID != layers.Dot11InformationElementIDSSID {
			continue
		}
		return string(ie.Info)
	}
	return ""
}
