//go:build !linux && !darwin && !windows && !(cgo && (freebsd || openbsd || netbsd))

package servolink

import (
	"fmt"
	"runtime"

	"bentcrank-plotter/pkg/errors"
)

// OpenLink is not available on this platform.
func OpenLink(cfg Config) (*Link, error) {
	return nil, errors.SerialError(cfg.Device, "open", fmt.Errorf("serial ports not supported on %s", runtime.GOOS))
}

// ListPorts returns nothing on this platform.
func ListPorts() []string {
	return nil
}
