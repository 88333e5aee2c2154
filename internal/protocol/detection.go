package protocol

import (
	"encoding/binary"
	"fmt"
)

// DetectionPayloadSize is the fixed payload length the camera emits: four
// little-endian uint16 bounding-box fields followed by a uint64 device
// timestamp.
const DetectionPayloadSize = 16

// Detection is one validated detection record from the camera: the bounding
// box of the tracked target in sensor pixel coordinates plus the device's
// millisecond timestamp when it was captured. A Detection is only ever built
// from a payload whose checksum matched.
type Detection struct {
	X         uint16 `json:"x"`
	Y         uint16 `json:"y"`
	W         uint16 `json:"w"`
	H         uint16 `json:"h"`
	Timestamp uint64 `json:"timestamp"`
}

// ParseDetection interprets a validated frame payload as a Detection. A
// payload of the wrong size is a decode failure: the frame is dropped, never
// a panic.
func ParseDetection(payload []byte) (Detection, error) {
	if len(payload) != DetectionPayloadSize {
		return Detection{}, fmt.Errorf("detection payload must be %d bytes, got %d", DetectionPayloadSize, len(payload))
	}

	return Detection{
		X:         binary.LittleEndian.Uint16(payload[0:2]),
		Y:         binary.LittleEndian.Uint16(payload[2:4]),
		W:         binary.LittleEndian.Uint16(payload[4:6]),
		H:         binary.LittleEndian.Uint16(payload[6:8]),
		Timestamp: binary.LittleEndian.Uint64(payload[8:16]),
	}, nil
}

// Payload serialises the detection back into its wire payload form. Inverse
// of ParseDetection; used by the replay tool and tests.
func (d Detection) Payload() []byte {
	payload := make([]byte, DetectionPayloadSize)
	binary.LittleEndian.PutUint16(payload[0:2], d.X)
	binary.LittleEndian.PutUint16(payload[2:4], d.Y)
	binary.LittleEndian.PutUint16(payload[4:6], d.W)
	binary.LittleEndian.PutUint16(payload[6:8], d.H)
	binary.LittleEndian.PutUint64(payload[8:16], d.Timestamp)
	return payload
}

func (d Detection) String() string {
	return fmt.Sprintf("X: %d, Y: %d, W: %d, H: %d, Timestamp: %d", d.X, d.Y, d.W, d.H, d.Timestamp)
}
