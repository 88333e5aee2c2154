package protocol

// CRC-8 parameters used by the camera firmware: polynomial 0x07, initial
// value 0x00, no reflection, no final XOR. The firmware ships the same
// 256-entry lookup table; generating it here keeps the two in lockstep
// without a wall of literals.
const crc8Poly = 0x07

var crc8Table = makeCRC8Table()

func makeCRC8Table() [256]byte {
	var table [256]byte
	for i := range table {
		crc := byte(i)
		for bit := 0; bit < 8; bit++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ crc8Poly
			} else {
				crc <<= 1
			}
		}
		table[i] = crc
	}
	return table
}

// Checksum computes the CRC-8 of data. It must produce the same value the
// sensor computed when it framed the payload, byte for byte, or every frame
// gets rejected.
func Checksum(data []byte) byte {
	var crc byte
	for _, b := range data {
		crc = crc8Table[crc^b]
	}
	return crc
}
