package receiver

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/camlink-data/camlink/internal/protocol"
	"github.com/camlink-data/camlink/internal/serialport"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func newTestReceiver(t *testing.T, port *serialport.TestablePort) *Receiver {
	t.Helper()
	opener, _ := serialport.MockOpener(port, nil)
	rx := New(Config{
		Port:        "/dev/ttyTEST",
		ReadTimeout: 10 * time.Millisecond,
		StopTimeout: time.Second,
		Open:        opener,
	})
	t.Cleanup(rx.Stop)
	return rx
}

func encodeDetection(t *testing.T, d protocol.Detection) []byte {
	t.Helper()
	frame, err := protocol.Encode(d.Payload())
	require.NoError(t, err)
	return frame
}

func TestReceiver_DeliversDetection(t *testing.T) {
	port := serialport.NewTestablePort()
	rx := newTestReceiver(t, port)

	want := protocol.Detection{X: 120, Y: 80, W: 32, H: 24, Timestamp: 1000}
	port.AddReadData(encodeDetection(t, want))

	require.NoError(t, rx.Start())

	var got protocol.Detection
	require.Eventually(t, func() bool {
		d, ok := rx.Latest()
		if ok {
			got = d
		}
		return ok
	}, waitFor, tick, "no detection arrived")
	require.Equal(t, want, got)

	// read consumed the slot; nothing new means nothing returned
	_, ok := rx.Latest()
	require.False(t, ok)
}

// TestReceiver_FreshestWins: when the consumer is slower than the sensor, the
// mailbox keeps only the newest validated detection.
func TestReceiver_FreshestWins(t *testing.T) {
	port := serialport.NewTestablePort()
	rx := newTestReceiver(t, port)

	older := protocol.Detection{X: 1, Timestamp: 1}
	newer := protocol.Detection{X: 2, Timestamp: 2}
	stream := append(encodeDetection(t, older), encodeDetection(t, newer)...)
	port.AddReadData(stream)

	require.NoError(t, rx.Start())

	require.Eventually(t, func() bool {
		accepted, _ := rx.Stats()
		return accepted == 2
	}, waitFor, tick, "frames were not decoded")

	got, ok := rx.Latest()
	require.True(t, ok)
	require.Equal(t, newer, got)

	_, ok = rx.Latest()
	require.False(t, ok)
}

func TestReceiver_ResynchronisesAfterGarbage(t *testing.T) {
	port := serialport.NewTestablePort()
	rx := newTestReceiver(t, port)

	want := protocol.Detection{X: 9, Y: 9, W: 9, H: 9, Timestamp: 9}
	stream := append([]byte{0x00, 0xFF, 0xAA, 0x13}, encodeDetection(t, want)...)
	port.AddReadData(stream)

	require.NoError(t, rx.Start())

	require.Eventually(t, func() bool {
		d, ok := rx.Latest()
		return ok && d == want
	}, waitFor, tick, "detection after garbage never arrived")
}

func TestReceiver_DropsCorruptFrame(t *testing.T) {
	port := serialport.NewTestablePort()
	rx := newTestReceiver(t, port)

	frame := encodeDetection(t, protocol.Detection{X: 5})
	frame[4] ^= 0x01 // flip a payload bit
	port.AddReadData(frame)

	require.NoError(t, rx.Start())

	require.Eventually(t, func() bool {
		_, rejected := rx.Stats()
		return rejected == 1
	}, waitFor, tick, "corrupt frame was not rejected")

	_, ok := rx.Latest()
	require.False(t, ok, "corrupt frame must not reach the mailbox")
}

// TestReceiver_DropsWrongSizePayload: a checksum-valid frame whose payload is
// not a detection record is dropped, not delivered and not a crash.
func TestReceiver_DropsWrongSizePayload(t *testing.T) {
	port := serialport.NewTestablePort()
	rx := newTestReceiver(t, port)

	frame, err := protocol.Encode([]byte{0x01, 0x02, 0x03})
	require.NoError(t, err)
	port.AddReadData(frame)

	require.NoError(t, rx.Start())

	require.Eventually(t, func() bool {
		_, rejected := rx.Stats()
		return rejected == 1
	}, waitFor, tick, "short payload was not dropped")

	_, ok := rx.Latest()
	require.False(t, ok)
}

func TestReceiver_StartFailsWhenPortUnavailable(t *testing.T) {
	opener, _ := serialport.MockOpener(nil, errors.New("no such device"))
	rx := New(Config{Port: "/dev/ttyMISSING", Open: opener})

	err := rx.Start()
	require.Error(t, err)

	// no task is running and the mailbox is empty
	_, ok := rx.Latest()
	require.False(t, ok)

	// Stop after a failed Start is a no-op
	rx.Stop()
}

func TestReceiver_StartTwice(t *testing.T) {
	port := serialport.NewTestablePort()
	rx := newTestReceiver(t, port)

	require.NoError(t, rx.Start())
	require.ErrorIs(t, rx.Start(), ErrAlreadyStarted)
}

func TestReceiver_StopIsIdempotent(t *testing.T) {
	port := serialport.NewTestablePort()
	rx := newTestReceiver(t, port)

	rx.Stop() // before start: no-op

	require.NoError(t, rx.Start())
	rx.Stop()
	require.True(t, port.IsClosed(), "Stop must close the port")
	rx.Stop() // second stop: no-op, no hang
}

// TestReceiver_FatalReadError: a transport failure ends the task; the
// consumer just stops seeing fresh data.
func TestReceiver_FatalReadError(t *testing.T) {
	port := serialport.NewTestablePort()
	rx := newTestReceiver(t, port)

	port.SetReadError(errors.New("device disconnected"))
	require.NoError(t, rx.Start())

	// the loop must exit on its own; give it a moment then verify no
	// further reads happen
	require.Eventually(t, func() bool {
		return port.ReadCallCount() >= 1
	}, waitFor, tick)

	calls := port.ReadCallCount()
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, calls, port.ReadCallCount(), "read loop kept running after fatal error")

	_, ok := rx.Latest()
	require.False(t, ok)
	rx.Stop()
}

// TestReceiver_SplitAcrossReads feeds a frame in two chunks with a gap to
// exercise the timeout path between partial reads.
func TestReceiver_SplitAcrossReads(t *testing.T) {
	port := serialport.NewTestablePort()
	rx := newTestReceiver(t, port)

	want := protocol.Detection{X: 77, Timestamp: 3}
	frame := encodeDetection(t, want)

	port.AddReadData(frame[:5])
	require.NoError(t, rx.Start())

	time.Sleep(30 * time.Millisecond) // let the loop drain and hit timeouts
	port.AddReadData(frame[5:])

	require.Eventually(t, func() bool {
		d, ok := rx.Latest()
		return ok && d == want
	}, waitFor, tick, "split frame never completed")
}
