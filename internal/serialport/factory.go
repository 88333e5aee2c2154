package serialport

import "go.bug.st/serial"

// Open opens a real serial port at the given path using the provided options.
// It satisfies the Opener function type so it can be injected as the default
// opener and replaced in tests.
func Open(path string, opts Options) (Porter, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, err
	}

	return port, nil
}
