package ingest

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"go.bug.st/serial"

	"github.com/banshee-data/trajectory.report/internal/track"
)

// SensorPort reads line-oriented polar records from a serial sensor.
// Each line is "range,azimuth,elevation,time" in the same units as the
// CSV export. Malformed lines are logged and skipped, matching how the
// sensor occasionally emits partial lines on power-up.
type SensorPort struct {
	port   io.ReadCloser
	events chan track.Measurement
}

// NewSensorPort opens the named serial port at 115200 8N1.
func NewSensorPort(portName string) (*SensorPort, error) {
	mode := &serial.Mode{
		BaudRate: 115200,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: 1,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", portName, err)
	}

	return &SensorPort{
		port:   port,
		events: make(chan track.Measurement),
	}, nil
}

// newSensorPortFromReader wires a SensorPort to an arbitrary reader.
// Used by tests.
func newSensorPortFromReader(r io.ReadCloser) *SensorPort {
	return &SensorPort{port: r, events: make(chan track.Measurement)}
}

// Measurements returns the channel of parsed measurements.
func (p *SensorPort) Measurements() <-chan track.Measurement {
	return p.events
}

// Close closes the underlying port.
func (p *SensorPort) Close() error {
	return p.port.Close()
}

// Monitor reads from the port until the context is cancelled or the
// port closes, sending parsed measurements to the events channel. It
// closes the events channel on return.
func (p *SensorPort) Monitor(ctx context.Context) error {
	defer p.Close()
	defer close(p.events)

	scan := bufio.NewScanner(p.port)
	for scan.Scan() {
		line := strings.TrimSpace(scan.Text())
		if line == "" {
			continue
		}

		m, err := ParseLine(line)
		if err != nil {
			log.Printf("serial: skipping malformed line %q: %v", line, err)
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case p.events <- m:
		}
	}
	return scan.Err()
}

// ParseLine parses one "range,azimuth,elevation,time" record.
func ParseLine(line string) (track.Measurement, error) {
	fields := strings.Split(line, ",")
	if len(fields) != 4 {
		return track.Measurement{}, fmt.Errorf("expected 4 fields, got %d", len(fields))
	}
	return polarRecord(
		strings.TrimSpace(fields[0]),
		strings.TrimSpace(fields[1]),
		strings.TrimSpace(fields[2]),
		strings.TrimSpace(fields[3]),
	)
}
