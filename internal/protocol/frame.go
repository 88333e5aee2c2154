package protocol

import "fmt"

// Frame layout emitted by the camera firmware:
//
//	SOF(2) | LEN(1) | PAYLOAD(LEN) | CHK(1) | EOF(2)
//
// SOF is 0xAA 0x55 and EOF is the mirrored 0x55 0xAA. LEN counts payload
// bytes only. CHK is the CRC-8 of the payload (see crc8.go). The stream is
// best-effort: anything that does not parse is dropped and scanning resumes
// at the next SOF.
const (
	sofFirst  = 0xAA
	sofSecond = 0x55
	eofFirst  = 0x55
	eofSecond = 0xAA

	// FrameOverhead is the number of framing bytes around a payload.
	FrameOverhead = 6

	// DefaultMaxPayload bounds the LEN byte. The detection payload is 16
	// bytes today; the margin leaves room for firmware additions without
	// letting line noise allocate 255-byte buffers.
	DefaultMaxPayload = 64
)

// State identifies where the decoder is within a frame. It is exported so
// tests can assert the decoder parks in the right place mid-frame.
type State int

const (
	StateSeekSOF State = iota
	StateReadLength
	StateReadPayload
	StateReadChecksum
	StateSeekEOF
)

func (s State) String() string {
	switch s {
	case StateSeekSOF:
		return "seek-sof"
	case StateReadLength:
		return "read-length"
	case StateReadPayload:
		return "read-payload"
	case StateReadChecksum:
		return "read-checksum"
	case StateSeekEOF:
		return "seek-eof"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// EventType classifies decode events delivered to the observer hook.
type EventType int

const (
	EventFrameAccepted EventType = iota
	EventFrameRejected
)

// RejectReason explains why a frame attempt was dropped.
type RejectReason int

const (
	RejectNone RejectReason = iota
	RejectBadLength
	RejectChecksumMismatch
	RejectBadEOF
)

func (r RejectReason) String() string {
	switch r {
	case RejectNone:
		return "none"
	case RejectBadLength:
		return "bad length"
	case RejectChecksumMismatch:
		return "checksum mismatch"
	case RejectBadEOF:
		return "bad end-of-frame"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

// Event describes one decode outcome. Length is the declared payload length
// of the attempt (0 when rejection happened at the LEN byte with value 0).
type Event struct {
	Type   EventType
	Reason RejectReason
	Length int
}

// Decoder is an incremental frame decoder. Feed it one byte at a time; it
// emits a validated payload whenever a complete frame checks out and
// silently resynchronises on anything malformed. It holds no memory across
// frame attempts beyond its position in the byte stream.
//
// Decoder is not safe for concurrent use. The receiver owns one per port.
type Decoder struct {
	maxPayload int
	hook       func(Event)

	state      State
	sofMatched int
	eofMatched int
	length     int
	payload    []byte
	checksumOK bool

	accepted uint64
	rejected uint64
}

// NewDecoder creates a decoder that accepts payloads up to maxPayload bytes
// (DefaultMaxPayload when <= 0). The hook, when non-nil, is invoked for every
// accepted or rejected frame.
func NewDecoder(maxPayload int, hook func(Event)) *Decoder {
	if maxPayload <= 0 {
		maxPayload = DefaultMaxPayload
	}
	return &Decoder{maxPayload: maxPayload, hook: hook}
}

// State returns the decoder's current position in the frame layout.
func (d *Decoder) State() State { return d.state }

// Stats returns the number of frames accepted and rejected so far. Bytes
// discarded while hunting for SOF are not counted as rejections.
func (d *Decoder) Stats() (accepted, rejected uint64) {
	return d.accepted, d.rejected
}

// Feed consumes a single byte. When the byte completes a valid frame, Feed
// returns the payload and true. The returned slice is owned by the caller;
// the decoder does not reuse it.
func (d *Decoder) Feed(b byte) ([]byte, bool) {
	switch d.state {
	case StateSeekSOF:
		switch {
		case d.sofMatched == 0 && b == sofFirst:
			d.sofMatched = 1
		case d.sofMatched == 1 && b == sofSecond:
			d.sofMatched = 0
			d.state = StateReadLength
		case b == sofFirst:
			// 0xAA 0xAA 0x55 still syncs on the second 0xAA
			d.sofMatched = 1
		default:
			d.sofMatched = 0
		}

	case StateReadLength:
		n := int(b)
		if n == 0 || n > d.maxPayload {
			d.reject(RejectBadLength, n)
			break
		}
		d.length = n
		d.payload = make([]byte, 0, n)
		d.state = StateReadPayload

	case StateReadPayload:
		d.payload = append(d.payload, b)
		if len(d.payload) == d.length {
			d.state = StateReadChecksum
		}

	case StateReadChecksum:
		// remember the verdict but keep consuming: the EOF bytes are
		// needed either way to stay synchronised
		d.checksumOK = b == Checksum(d.payload)
		d.eofMatched = 0
		d.state = StateSeekEOF

	case StateSeekEOF:
		want := byte(eofFirst)
		if d.eofMatched == 1 {
			want = eofSecond
		}
		if b != want {
			d.reject(RejectBadEOF, d.length)
			break
		}
		d.eofMatched++
		if d.eofMatched < 2 {
			break
		}
		payload := d.payload
		ok := d.checksumOK
		d.reset()
		if !ok {
			d.rejected++
			d.emit(Event{Type: EventFrameRejected, Reason: RejectChecksumMismatch, Length: len(payload)})
			return nil, false
		}
		d.accepted++
		d.emit(Event{Type: EventFrameAccepted, Length: len(payload)})
		return payload, true
	}

	return nil, false
}

// FeedAll consumes a chunk of bytes and returns every payload completed
// within it, in arrival order.
func (d *Decoder) FeedAll(data []byte) [][]byte {
	var payloads [][]byte
	for _, b := range data {
		if payload, ok := d.Feed(b); ok {
			payloads = append(payloads, payload)
		}
	}
	return payloads
}

func (d *Decoder) reject(reason RejectReason, length int) {
	d.rejected++
	d.emit(Event{Type: EventFrameRejected, Reason: reason, Length: length})
	d.reset()
}

func (d *Decoder) reset() {
	d.state = StateSeekSOF
	d.sofMatched = 0
	d.eofMatched = 0
	d.length = 0
	d.payload = nil
	d.checksumOK = false
}

func (d *Decoder) emit(ev Event) {
	if d.hook != nil {
		d.hook(ev)
	}
}

// Encode builds a complete frame around payload. It is the producer half of
// the protocol, used by the replay tool and by tests to exercise the decoder
// with known-good frames.
func Encode(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("cannot encode empty payload")
	}
	if len(payload) > 255 {
		return nil, fmt.Errorf("payload too large: %d bytes, limit 255", len(payload))
	}

	frame := make([]byte, 0, len(payload)+FrameOverhead)
	frame = append(frame, sofFirst, sofSecond, byte(len(payload)))
	frame = append(frame, payload...)
	frame = append(frame, Checksum(payload), eofFirst, eofSecond)
	return frame, nil
}
