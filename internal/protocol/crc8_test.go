package protocol

import "testing"

// TestChecksum_KnownVectors pins the CRC-8 parameters against values from the
// camera firmware's lookup table and the standard check string.
func TestChecksum_KnownVectors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want byte
	}{
		{"empty", nil, 0x00},
		{"single zero", []byte{0x00}, 0x00},
		{"single one", []byte{0x01}, 0x07},
		{"two bytes", []byte{0x10, 0x20}, 0xB7},
		{"check string", []byte("123456789"), 0xF4},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Checksum(tc.data); got != tc.want {
				t.Errorf("Checksum(%v) = 0x%02X, want 0x%02X", tc.data, got, tc.want)
			}
		})
	}
}

// TestCRC8Table_MatchesFirmware compares generated table entries against
// values copied from the firmware's literal table.
func TestCRC8Table_MatchesFirmware(t *testing.T) {
	firstRow := []byte{
		0x00, 0x07, 0x0e, 0x09, 0x1c, 0x1b, 0x12, 0x15,
		0x38, 0x3f, 0x36, 0x31, 0x24, 0x23, 0x2a, 0x2d,
	}
	for i, want := range firstRow {
		if crc8Table[i] != want {
			t.Errorf("crc8Table[%d] = 0x%02X, want 0x%02X", i, crc8Table[i], want)
		}
	}

	// spot checks deeper into the table
	spots := map[int]byte{
		0x10: 0x70,
		0x80: 0x89,
		0xFE: 0xf4,
		0xFF: 0xf3,
	}
	for i, want := range spots {
		if crc8Table[i] != want {
			t.Errorf("crc8Table[0x%02X] = 0x%02X, want 0x%02X", i, crc8Table[i], want)
		}
	}
}

// TestChecksum_SingleBitSensitivity verifies the property the protocol relies
// on to reject corruption: flipping any single bit of the input changes the
// checksum.
func TestChecksum_SingleBitSensitivity(t *testing.T) {
	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x00, 0x42, 0xAA, 0x55}
	base := Checksum(payload)

	for i := range payload {
		for bit := 0; bit < 8; bit++ {
			mutated := make([]byte, len(payload))
			copy(mutated, payload)
			mutated[i] ^= 1 << bit
			if Checksum(mutated) == base {
				t.Errorf("flipping byte %d bit %d did not change checksum 0x%02X", i, bit, base)
			}
		}
	}
}

func TestChecksum_Deterministic(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04}
	if Checksum(data) != Checksum(data) {
		t.Error("Checksum is not deterministic")
	}
}
