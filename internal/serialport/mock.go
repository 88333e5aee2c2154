package serialport

import (
	"bytes"
	"errors"
	"sync"
	"time"
)

// ErrPortClosed is returned by TestablePort operations after Close.
var ErrPortClosed = errors.New("serial port closed")

// TestablePort implements Porter with configurable behaviour for testing.
// Reads drain a buffer that tests fill with AddReadData; an empty buffer
// behaves like a read timeout (0, nil) so receiver loops keep polling, the
// same contract a real port with a read timeout provides.
type TestablePort struct {
	mu sync.Mutex

	// ReadBuffer holds data to be returned by Read calls
	ReadBuffer *bytes.Buffer

	// WriteBuffer captures data written to the port
	WriteBuffer *bytes.Buffer

	// ReadError is returned by the next Read call if set
	ReadError error

	// CloseError is returned by Close if set
	CloseError error

	// Closed indicates whether Close was called
	Closed bool

	// ReadCalls records the number of Read calls
	ReadCalls int

	// ReadTimeout is the most recent timeout passed to SetReadTimeout
	ReadTimeout time.Duration
}

// NewTestablePort creates a new TestablePort for testing.
func NewTestablePort() *TestablePort {
	return &TestablePort{
		ReadBuffer:  bytes.NewBuffer(nil),
		WriteBuffer: bytes.NewBuffer(nil),
	}
}

// Read drains the read buffer. An empty buffer simulates a read timeout.
func (t *TestablePort) Read(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ReadCalls++

	if t.Closed {
		return 0, ErrPortClosed
	}

	if t.ReadError != nil {
		err := t.ReadError
		t.ReadError = nil
		return 0, err
	}

	if t.ReadBuffer.Len() == 0 {
		// simulate the port timeout path without spinning the caller
		t.mu.Unlock()
		time.Sleep(time.Millisecond)
		t.mu.Lock()
		return 0, nil
	}

	return t.ReadBuffer.Read(p)
}

// Write captures writes so tests can assert on commands sent to the device.
func (t *TestablePort) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.Closed {
		return 0, ErrPortClosed
	}

	return t.WriteBuffer.Write(p)
}

// Close marks the port as closed.
func (t *TestablePort) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.Closed = true
	return t.CloseError
}

// SetReadTimeout implements TimeoutPorter.
func (t *TestablePort) SetReadTimeout(timeout time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ReadTimeout = timeout
	return nil
}

// AddReadData appends data to be returned by subsequent Read calls.
func (t *TestablePort) AddReadData(data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ReadBuffer.Write(data)
}

// ReadCallCount returns how many times Read was called.
func (t *TestablePort) ReadCallCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.ReadCalls
}

// IsClosed reports whether Close was called.
func (t *TestablePort) IsClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.Closed
}

// SetReadError arranges for the next Read call to fail with err.
func (t *TestablePort) SetReadError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ReadError = err
}

// MockOpener returns an Opener that records open calls and hands out the
// given port (or error).
func MockOpener(port Porter, err error) (Opener, *[]string) {
	paths := &[]string{}
	var mu sync.Mutex
	return func(path string, opts Options) (Porter, error) {
		mu.Lock()
		*paths = append(*paths, path)
		mu.Unlock()
		if err != nil {
			return nil, err
		}
		return port, nil
	}, paths
}
