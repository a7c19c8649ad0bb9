package serial

import (
	"io"
	"time"
)

// Port represents a serial port interface
// This abstraction allows for different implementations:
// - Native serial (using github.com/tarm/serial)
// - In-memory loopback (for tests and dry runs)
type Port interface {
	io.ReadWriteCloser

	// Flush flushes any buffered data
	Flush() error
}

// Transport is the byte stream the protocol engine runs on.
// Available never blocks; Read returns at most what Available reported.
type Transport interface {
	Available() int
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyACM0", "COM3")
	Device string

	// Baud rate (the KerbalSimpit plugin defaults to 115200, the Arduino
	// sketches to 9600)
	Baud int

	// Read timeout. Values below MinReadTimeout are raised to it when the
	// port is opened; a blocking read would keep Close from returning.
	ReadTimeout time.Duration
}

// MinReadTimeout is the shortest read timeout Open applies
const MinReadTimeout = 50 * time.Millisecond

// DefaultConfig returns a default configuration for a KerbalSimpit device
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        9600,
		ReadTimeout: MinReadTimeout,
	}
}
