//go:build linux || darwin

package servolink

import (
	stderrors "errors"
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sys/unix"

	"bentcrank-plotter/pkg/errors"
)

// ErrClosed is returned by Write on a closed port.
var ErrClosed = stderrors.New("servolink: port closed")

// Port is a tty opened in raw 8N1 mode. Only the write side is used.
type Port struct {
	mu         sync.Mutex
	fd         int
	device     string
	closed     bool
	oldTermios *unix.Termios
}

// Open opens cfg.Device and configures it for raw 8N1 at cfg.Baud.
func Open(cfg Config) (*Port, error) {
	if cfg.Device == "" {
		return nil, errors.SerialError("", "open", fmt.Errorf("device path required"))
	}
	baud := cfg.Baud
	if baud == 0 {
		baud = DefaultBaud
	}
	speed, err := baudRateToSpeed(baud)
	if err != nil {
		return nil, errors.SerialError(cfg.Device, "open", err)
	}

	fd, err := unix.Open(cfg.Device, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, errors.SerialError(cfg.Device, "open", err)
	}

	oldTermios, err := unix.IoctlGetTermios(fd, ioctlGetTermios)
	if err != nil {
		unix.Close(fd)
		return nil, errors.SerialError(cfg.Device, "get termios", err)
	}

	termios := *oldTermios
	termios.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON | unix.IXOFF | unix.IXANY
	termios.Oflag &^= unix.OPOST
	termios.Cflag &^= unix.CSIZE | unix.PARENB | unix.PARODD | unix.CSTOPB
	termios.Cflag |= unix.CS8 | unix.CREAD | unix.CLOCAL
	termios.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	setSpeed(&termios, speed)
	termios.Cc[unix.VMIN] = 0
	termios.Cc[unix.VTIME] = 1

	if err := unix.IoctlSetTermios(fd, ioctlSetTermios, &termios); err != nil {
		unix.Close(fd)
		return nil, errors.SerialError(cfg.Device, "set termios", err)
	}
	if err := unix.SetNonblock(fd, false); err != nil {
		unix.Close(fd)
		return nil, errors.SerialError(cfg.Device, "set blocking", err)
	}

	return &Port{fd: fd, device: cfg.Device, oldTermios: oldTermios}, nil
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
		n, err := unix.Write(p.fd, buf[total:])
		if err != nil {
			if err == unix.EINTR || err == unix.EAGAIN {
				continue
			}
			return total, err
		}
		total += n
	}
	return total, nil
}

// Close restores the original terminal settings and closes the device.
func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if p.oldTermios != nil {
		unix.IoctlSetTermios(p.fd, ioctlSetTermios, p.oldTermios)
	}
	return unix.Close(p.fd)
}

// Device returns the device path.
func (p *Port) Device() string {
	return p.device
}

// ListPorts returns the serial devices present on this machine.
func ListPorts() []string {
	var patterns []string
	switch runtime.GOOS {
	case "linux":
		patterns = []string{"/dev/ttyUSB*", "/dev/ttyACM*", "/dev/serial/by-id/*"}
	case "darwin":
		patterns = []string{"/dev/cu.usbserial*", "/dev/cu.usbmodem*"}
	}

	seen := make(map[string]bool)
	var ports []string
	for _, pattern := range patterns {
		matches, _ := filepath.Glob(pattern)
		for _, m := range matches {
			resolved, err := filepath.EvalSymlinks(m)
			if err != nil {
				resolved = m
			}
			if !seen[resolved] {
				seen[resolved] = true
				ports = append(ports, resolved)
			}
		}
	}
	sort.Strings(ports)
	return ports
}
