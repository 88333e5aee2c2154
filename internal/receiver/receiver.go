package receiver

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/camlink-data/camlink/internal/protocol"
	"github.com/camlink-data/camlink/internal/serialport"
)

const readChunkSize = 256

// ErrAlreadyStarted is returned by Start when the receiver is running.
var ErrAlreadyStarted = errors.New("receiver already started")

// Config holds the receiver's connection and protocol parameters.
type Config struct {
	// Port is the serial device path, e.g. /dev/ttyAMA4.
	Port string

	// Options are the serial connection parameters. Zero value means the
	// sensor default of 115200 8N1.
	Options serialport.Options

	// MaxPayload bounds the frame LEN byte (protocol.DefaultMaxPayload
	// when zero).
	MaxPayload int

	// ReadTimeout bounds each serial read so the loop can notice Stop.
	// Defaults to one second.
	ReadTimeout time.Duration

	// StopTimeout bounds how long Stop waits for the read loop to exit.
	// Defaults to two seconds.
	StopTimeout time.Duration

	// Debug enables per-frame trace logging of accepted and rejected
	// frames. Logging only; decode behaviour is identical either way.
	Debug bool

	// Open replaces the real serial opener in tests. Nil means
	// serialport.Open.
	Open serialport.Opener
}

func (c Config) withDefaults() Config {
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = time.Second
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = 2 * time.Second
	}
	if c.Open == nil {
		c.Open = serialport.Open
	}
	return c
}

// Receiver owns the serial port and the background task that decodes frames
// from it. The latest validated detection is available through Latest, which
// consumes it. Start and Stop manage the task lifecycle; they are meant to be
// called from a single owner, not concurrently with each other.
type Receiver struct {
	cfg     Config
	mailbox Mailbox[protocol.Detection]

	mu     sync.Mutex
	port   serialport.Porter
	cancel context.CancelFunc
	done   chan struct{}

	accepted atomic.Uint64
	rejected atomic.Uint64
}

// New creates a receiver for the given configuration. Nothing is opened
// until Start.
func New(cfg Config) *Receiver {
	return &Receiver{cfg: cfg.withDefaults()}
}

// Start opens the serial port and launches the background read loop. It
// returns an error when the port cannot be opened, in which case no goroutine
// is running and the mailbox stays empty.
func (r *Receiver) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		return ErrAlreadyStarted
	}

	port, err := r.cfg.Open(r.cfg.Port, r.cfg.Options)
	if err != nil {
		return fmt.Errorf("open serial port %s: %w", r.cfg.Port, err)
	}

	if tp, ok := port.(serialport.TimeoutPorter); ok {
		if err := tp.SetReadTimeout(r.cfg.ReadTimeout); err != nil {
			port.Close()
			return fmt.Errorf("set read timeout on %s: %w", r.cfg.Port, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.port = port
	r.cancel = cancel
	r.done = make(chan struct{})

	go r.run(ctx, port, r.done)

	if r.cfg.Debug {
		log.Printf("receiver: opened %s, read loop started", r.cfg.Port)
	}
	return nil
}

// Latest returns the most recent validated detection and clears it. The
// second return is false when nothing new arrived since the previous call.
func (r *Receiver) Latest() (protocol.Detection, bool) {
	return r.mailbox.Take()
}

// Stats returns the number of frames accepted and rejected since Start.
func (r *Receiver) Stats() (accepted, rejected uint64) {
	return r.accepted.Load(), r.rejected.Load()
}

// Stop signals the read loop to terminate, closes the port to unblock any
// in-flight read, and waits up to StopTimeout for the loop to exit. Calling
// Stop when not started, or twice, is a no-op.
func (r *Receiver) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	done := r.done
	port := r.port
	r.cancel = nil
	r.done = nil
	r.port = nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	port.Close()

	select {
	case <-done:
	case <-time.After(r.cfg.StopTimeout):
		log.Printf("receiver: read loop did not exit within %v", r.cfg.StopTimeout)
	}
}

// run is the background receiver task: read available bytes, feed them
// through the decoder, publish validated detections. It exits on context
// cancellation or on a fatal transport error; framing errors never terminate
// it.
func (r *Receiver) run(ctx context.Context, port serialport.Porter, done chan struct{}) {
	defer close(done)

	decoder := protocol.NewDecoder(r.cfg.MaxPayload, r.traceEvent)
	buf := make([]byte, readChunkSize)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := port.Read(buf)
		for _, b := range buf[:n] {
			payload, ok := decoder.Feed(b)
			if !ok {
				continue
			}
			detection, perr := protocol.ParseDetection(payload)
			if perr != nil {
				// valid frame, wrong record shape: treated as a
				// framing error and dropped
				r.rejected.Add(1)
				if r.cfg.Debug {
					log.Printf("receiver: dropping frame: %v", perr)
				}
				continue
			}
			r.mailbox.Publish(detection)
		}
		if err != nil {
			// a zero-byte read with no error is a timeout and loops;
			// any read error is fatal and ends the task
			if ctx.Err() == nil {
				log.Printf("receiver: serial read failed, stopping: %v", err)
			}
			return
		}
	}
}

func (r *Receiver) traceEvent(ev protocol.Event) {
	switch ev.Type {
	case protocol.EventFrameAccepted:
		r.accepted.Add(1)
		if r.cfg.Debug {
			log.Printf("receiver: frame accepted (%d byte payload)", ev.Length)
		}
	case protocol.EventFrameRejected:
		r.rejected.Add(1)
		if r.cfg.Debug {
			log.Printf("receiver: frame rejected: %s (length %d)", ev.Reason, ev.Length)
		}
	}
}
