// Package serialport abstracts the serial byte source that detection frames
// arrive on. The receiver only ever needs a readable, closable stream, so the
// interfaces here stay minimal and the real go.bug.st/serial port satisfies
// them directly. The abstraction exists so the frame pipeline can be tested
// without serial hardware.
package serialport

import (
	"io"
	"time"
)

// Porter defines the minimal interface needed for a serial port.
type Porter interface {
	io.ReadWriter
	io.Closer
}

// TimeoutPorter extends Porter with a read timeout. Ports that implement it
// return (0, nil) from Read when no bytes arrive within the timeout, which
// lets the receiver's read loop poll its cancellation signal.
type TimeoutPorter interface {
	Porter
	SetReadTimeout(timeout time.Duration) error
}

// Opener is a function type for opening serial ports. It allows the real
// serial.Open to be swapped for a mock in tests.
type Opener func(path string, opts Options) (Porter, error)
