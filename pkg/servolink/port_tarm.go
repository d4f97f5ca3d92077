//go:build windows || (cgo && (freebsd || openbsd || netbsd))

package servolink

import (
	stderrors "errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/tarm/serial"

	"bentcrank-plotter/pkg/errors"
)

// ErrClosed is returned by Write on a closed port.
var ErrClosed = stderrors.New("servolink: port closed")

// Port is a serial device opened through tarm/serial at 8N1.
type Port struct {
	mu     sync.Mutex
	port   *serial.Port
	device string
	closed bool
}

// Open opens cfg.Device at cfg.Baud.
func Open(cfg Config) (*Port, error) {
	if cfg.Device == "" {
		return nil, errors.SerialError("", "open", fmt.Errorf("device path required"))
	}
	baud := cfg.Baud
	if baud == 0 {
		baud = DefaultBaud
	}
	sp, err := serial.OpenPort(&serial.Config{Name: cfg.Device, Baud: baud})
	if err != nil {
		return nil, errors.SerialError(cfg.Device, "open", err)
	}
	return &Port{port: sp, device: cfg.Device}, nil
}

// OpenLink opens the configured device and wraps it in a Link.
func OpenLink(cfg Config) (*Link, error) {
	p, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	return NewLink(p, cfg.Device), nil
}

// Write writes all of buf, retrying short writes.
func (p *Port) Write(buf []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, ErrClosed
	}
	total := 0
	for total < len(buf) {
		n, err := p.port.Write(buf[total:])
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// Close closes the device.
func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.port.Close()
}

// Device returns the device path.
func (p *Port) Device() string {
	return p.device
}

// ListPorts returns likely device names. Windows has no device directory
// to scan, so the first COM ports are probed by opening them.
func ListPorts() []string {
	var candidates []string
	switch runtime.GOOS {
	case "windows":
		for i := 1; i <= 16; i++ {
			candidates = append(candidates, fmt.Sprintf("COM%d", i))
		}
	default:
		for i := 0; i < 4; i++ {
			candidates = append(candidates, fmt.Sprintf("/dev/cuaU%d", i))
		}
	}

	var ports []string
	for _, name := range candidates {
		sp, err := serial.OpenPort(&serial.Config{Name: name, Baud: DefaultBaud})
		if err != nil {
			continue
		}
		sp.Close()
		ports = append(ports, name)
	}
	return ports
}
