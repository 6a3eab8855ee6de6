package sensors

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.bug.st/serial"

	"github.com/skywatch-data/skywatch/internal/monitoring"
	"github.com/skywatch-data/skywatch/internal/tracker"
)

// RFSensor reads power-sweep lines from a serial-attached SDR front-end and
// converts readings above the signal threshold into detection events. Each
// line carries one measurement: "<freq_mhz>,<power_dbm>".
type RFSensor struct {
	port    io.ReadCloser
	sink    Sink
	locator Locator

	// ThresholdDBm filters out readings below the detection threshold.
	ThresholdDBm float64
}

// OpenRFPort opens the serial port the SDR front-end is attached to.
func OpenRFPort(portName string) (io.ReadCloser, error) {
	mode := &serial.Mode{
		BaudRate: 115200,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("%w: open serial port %s: %v", ErrSensorUnavailable, portName, err)
	}
	return port, nil
}

// NewRFSensor creates an RF sweep sensor reading from the given port.
func NewRFSensor(port io.ReadCloser, sink Sink, locator Locator, thresholdDBm float64) *RFSensor {
	return &RFSensor{
		port:         port,
		sink:         sink,
		locator:      locator,
		ThresholdDBm: thresholdDBm,
	}
}

// Name implements the sensor identity used in startup logs.
func (s *RFSensor) Name() string { return "rf_sweep" }

// Run reads sweep lines until the context is cancelled or the port closes.
// Unparseable lines are skipped; a glitching front-end never stops the
// sensor.
func (s *RFSensor) Run(ctx context.Context) error {
	defer s.port.Close()
	scan := bufio.NewScanner(s.port)

	lineChan := make(chan string)
	scanErrChan := make(chan error, 1)

	// Read on a separate goroutine so the blocking scan.Scan never keeps
	// the outer loop from observing cancellation on a silent port.
	go func() {
		defer close(lineChan)
		for scan.Scan() {
			select {
			case lineChan <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			select {
			case scanErrChan <- err:
			case <-ctx.Done():
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case err := <-scanErrChan:
			return fmt.Errorf("read rf sweep: %w", err)

		case line, ok := <-lineChan:
			if !ok {
				monitoring.Logf("rf sensor: sweep stream closed")
				return nil
			}
			ev, ok, err := s.eventFromLine(line, time.Now())
			if err != nil {
				monitoring.Logf("rf sensor: skipping line: %v", err)
				continue
			}
			if ok {
				submit(s.sink, s.locator, ev)
			}
		}
	}
}

// eventFromLine parses one sweep line and applies the threshold. The emitter
// key combines the integer frequency with the detection second, mirroring the
// front-end's key derivation; the weak key is a documented accuracy limit.
func (s *RFSensor) eventFromLine(line string, now time.Time) (tracker.DetectionEvent, bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return tracker.DetectionEvent{}, false, nil
	}

	parts := strings.Split(line, ",")
	if len(parts) != 2 {
		return tracker.DetectionEvent{}, false, fmt.Errorf("malformed sweep line %q", line)
	}
	freqMHz, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return tracker.DetectionEvent{}, false, fmt.Errorf("parse frequency in %q: %w", line, err)
	}
	powerDBm, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return tracker.DetectionEvent{}, false, fmt.Errorf("parse power in %q: %w", line, err)
	}

	if powerDBm <= s.ThresholdDBm {
		return tracker.DetectionEvent{}, false, nil
	}

	return tracker.DetectionEvent{
		SourceKind:     tracker.SourceRF,
		EmitterID:      fmt.Sprintf("RF_%d_%d", int(freqMHz), now.Unix()),
		Timestamp:      now,
		SignalPower:    powerDBm,
		Classification: "RF_SIGNAL",
	}, true, nil
}
