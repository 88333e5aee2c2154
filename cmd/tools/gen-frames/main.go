// Command gen-frames writes a synthetic detection frame stream to stdout,
// optionally corrupting a fraction of frames and sprinkling in line noise.
// Useful for loopback testing the receiver without the sensor attached:
//
//	gen-frames -count 100 -noise 0.2 > stream.bin
package main

import (
	"bufio"
	"flag"
	"log"
	"math/rand"
	"os"

	"github.com/camlink-data/camlink/internal/protocol"
)

var (
	count   = flag.Int("count", 10, "number of frames to generate")
	corrupt = flag.Float64("corrupt", 0, "fraction of frames with a flipped payload bit")
	noise   = flag.Float64("noise", 0, "fraction of frames preceded by random garbage bytes")
	seed    = flag.Int64("seed", 1, "random seed")
)

func main() {
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))
	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	for i := 0; i < *count; i++ {
		if rng.Float64() < *noise {
			garbage := make([]byte, 1+rng.Intn(8))
			rng.Read(garbage)
			out.Write(garbage)
		}

		detection := protocol.Detection{
			X:         uint16(rng.Intn(640)),
			Y:         uint16(rng.Intn(480)),
			W:         uint16(1 + rng.Intn(200)),
			H:         uint16(1 + rng.Intn(200)),
			Timestamp: uint64(i) * 33,
		}

		frame, err := protocol.Encode(detection.Payload())
		if err != nil {
			log.Fatalf("encode frame: %v", err)
		}

		if rng.Float64() < *corrupt {
			// flip one payload bit; the decoder should drop this frame
			idx := 3 + rng.Intn(protocol.DetectionPayloadSize)
			frame[idx] ^= 1 << rng.Intn(8)
		}

		out.Write(frame)
	}
}
