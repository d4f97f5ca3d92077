// Package servolink streams servo angle pairs to the servo controller over a
// line protocol:
//
//	S <left> <right>\n   move both servos, degrees with two decimals
//	P <0|1>\n            pen up (0) or down (1)
//
// A Link writes to any io.Writer; Open attaches one to a serial tty.
package servolink

import (
	"fmt"
	"io"
	"math"
	"sync"

	"bentcrank-plotter/pkg/errors"
	"bentcrank-plotter/pkg/kinematics"
	"bentcrank-plotter/pkg/log"
	"bentcrank-plotter/pkg/pool"
)

// DefaultBaud is used when Config.Baud is zero.
const DefaultBaud = 115200

// Config describes the serial connection to the servo controller.
type Config struct {
	Device string `json:"device"`
	Baud   int    `json:"baud"`
}

// Enabled reports whether a device is configured.
func (c Config) Enabled() bool {
	return c.Device != ""
}

// Link serializes servo commands onto a writer. It is safe for concurrent
// use; each command is written with a single Write call.
type Link struct {
	mu     sync.Mutex
	w      io.Writer
	name   string
	sent   uint64
	logger *log.Logger
}

// NewLink returns a Link writing to w. name identifies the link in errors
// and logs.
func NewLink(w io.Writer, name string) *Link {
	return &Link{
		w:      w,
		name:   name,
		logger: log.GetLogger("servolink").With(log.Fields{"device": name}),
	}
}

// AppendServoCommand appends the move command for p to dst.
func AppendServoCommand(dst *pool.ByteBuffer, p kinematics.ServoPair) {
	dst.WriteString("S ")
	dst.AppendFloat(p.Left, 2)
	dst.WriteByte(' ')
	dst.AppendFloat(p.Right, 2)
	dst.WriteByte('\n')
}

func (l *Link) write(buf *pool.ByteBuffer, op string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.w.Write(buf.Bytes()); err != nil {
		return errors.SerialError(l.name, op, err)
	}
	l.sent++
	return nil
}

// SendServos writes one move command.
func (l *Link) SendServos(p kinematics.ServoPair) error {
	if math.IsNaN(p.Left) || math.IsNaN(p.Right) || math.IsInf(p.Left, 0) || math.IsInf(p.Right, 0) {
		return errors.SerialError(l.name, "send", fmt.Errorf("invalid servo pair %+v", p))
	}
	buf := pool.GetByteBuffer()
	defer pool.PutByteBuffer(buf)
	AppendServoCommand(buf, p)
	return l.write(buf, "send")
}

// SetPen writes a pen command.
func (l *Link) SetPen(down bool) error {
	buf := pool.GetByteBuffer()
	defer pool.PutByteBuffer(buf)
	if down {
		buf.WriteString("P 1\n")
	} else {
		buf.WriteString("P 0\n")
	}
	return l.write(buf, "pen")
}

// SendPath streams the found entries of results in order and skips the
// rest. It stops at the first write error.
func (l *Link) SendPath(results []kinematics.InverseResult) (sent, skipped int, err error) {
	for _, r := range results {
		if !r.Found() {
			skipped++
			continue
		}
		if err := l.SendServos(r.Servos); err != nil {
			return sent, skipped, err
		}
		sent++
	}
	if skipped > 0 {
		l.logger.WithFields(log.Fields{"sent": sent, "skipped": skipped}).Warn("path had unsolvable points")
	}
	return sent, skipped, nil
}

// Sent returns the number of commands written so far.
func (l *Link) Sent() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sent
}

// Close closes the underlying writer if it is an io.Closer.
func (l *Link) Close() error {
	c, ok := l.w.(io.Closer)
	if !ok {
		return nil
	}
	if err := c.Close(); err != nil {
		return errors.SerialError(l.name, "close", err)
	}
	return nil
}
