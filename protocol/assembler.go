package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"
)

// DefaultPollInterval is how long the assembler sleeps when the transport
// reports no pending bytes.
const DefaultPollInterval = 25 * time.Millisecond

// ByteSource is the read side of the transport. Available never blocks.
type ByteSource interface {
	Available() int
	Read(p []byte) (int, error)
}

type assemblerState uint8

const (
	stateAwaitHeader0 assemblerState = iota
	stateAwaitHeader1
	stateAwaitSize
	stateAwaitType
	stateAwaitData
)

func (s assemblerState) String() string {
	switch s {
	case stateAwaitHeader0:
		return "AwaitHeader0"
	case stateAwaitHeader1:
		return "AwaitHeader1"
	case stateAwaitSize:
		return "AwaitSize"
	case stateAwaitType:
		return "AwaitType"
	case stateAwaitData:
		return "AwaitData"
	default:
		return "Unknown"
	}
}

// Assembler reassembles packets from an arbitrarily chunked byte stream.
// It is not safe for concurrent use; a single task owns it.
type Assembler struct {
	state assemblerState
	frame [PacketSize]byte
	size  int // declared payload length
	read  int // payload bytes consumed so far

	// Counters are read by other goroutines for metrics
	discarded atomic.Uint64
	invalid   atomic.Uint64
	frames    atomic.Uint64

	pollInterval time.Duration
	errorHandler func(error)
	traceHandler func([]byte)
}

// AssemblerOption configures an Assembler
type AssemblerOption func(*Assembler)

// WithPollInterval sets the idle wait used by Run
func WithPollInterval(d time.Duration) AssemblerOption {
	return func(a *Assembler) {
		if d > 0 {
			a.pollInterval = d
		}
	}
}

// WithErrorHandler receives every rejected frame and transport read error
func WithErrorHandler(fn func(error)) AssemblerOption {
	return func(a *Assembler) {
		if fn != nil {
			a.errorHandler = fn
		}
	}
}

// WithTraceHandler receives every raw chunk read from the transport
func WithTraceHandler(fn func([]byte)) AssemblerOption {
	return func(a *Assembler) {
		if fn != nil {
			a.traceHandler = fn
		}
	}
}

// NewAssembler creates an assembler waiting for the first header byte
func NewAssembler(opts ...AssemblerOption) *Assembler {
	a := &Assembler{
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Reset drops any partial frame and waits for a new header
func (a *Assembler) Reset() {
	a.state = stateAwaitHeader0
	a.frame = [PacketSize]byte{}
	a.size = 0
	a.read = 0
}

// Discarded returns the number of stray bytes skipped while hunting for a header
func (a *Assembler) Discarded() uint64 {
	return a.discarded.Load()
}

// Invalid returns the number of frames rejected by Decode
func (a *Assembler) Invalid() uint64 {
	return a.invalid.Load()
}

// Frames returns the number of packets assembled successfully
func (a *Assembler) Frames() uint64 {
	return a.frames.Load()
}

// Feed drives the state machine over chunk, calling emit for every
// completed packet in stream order.
func (a *Assembler) Feed(chunk []byte, emit func(Packet)) {
	for _, b := range chunk {
		switch a.state {
		case stateAwaitHeader0:
			if b != HeaderByte0 {
				a.discarded.Add(1)
				continue
			}
			a.frame[PositionHeader0] = b
			a.state = stateAwaitHeader1

		case stateAwaitHeader1:
			if b == HeaderByte1 {
				a.frame[PositionHeader1] = b
				a.state = stateAwaitSize
				continue
			}
			a.discarded.Add(1)
			if b == HeaderByte0 {
				// AA AA 50: the second 0xAA may start the real frame
				a.frame[PositionHeader0] = b
				continue
			}
			a.state = stateAwaitHeader0

		case stateAwaitSize:
			a.frame[PositionSize] = b
			a.size = int(b)
			if a.size > MaxPayloadSize {
				a.reject(fmt.Errorf("%w: declared payload length %d (max %d)", ErrInvalidPacket, a.size, MaxPayloadSize))
				continue
			}
			a.state = stateAwaitType

		case stateAwaitType:
			a.frame[PositionType] = b
			if a.size == 0 {
				a.complete(emit)
				continue
			}
			a.read = 0
			a.state = stateAwaitData

		case stateAwaitData:
			a.frame[HeaderSize+a.read] = b
			a.read++
			if a.read >= a.size {
				a.complete(emit)
			}
		}
	}
}

func (a *Assembler) complete(emit func(Packet)) {
	// Bytes past the declared length stay zero, matching the padded frame
	pkt, err := Decode(a.frame[:])
	if err != nil {
		a.reject(err)
		return
	}
	a.Reset()
	a.frames.Add(1)
	if emit != nil {
		emit(pkt)
	}
}

func (a *Assembler) reject(err error) {
	a.invalid.Add(1)
	a.Reset()
	a.handleError(err)
}

func (a *Assembler) handleError(err error) {
	if a.errorHandler != nil {
		a.errorHandler(err)
	}
}

// Run is the assembler task. It waits for bytes, reads everything that is
// available in one call and pushes completed packets into queue until ctx
// is done or the source reports io.EOF.
func (a *Assembler) Run(ctx context.Context, src ByteSource, queue *PacketQueue) error {
	buf := make([]byte, 0, PacketSize*4)
	timer := time.NewTimer(a.pollInterval)
	defer timer.Stop()

	emit := func(p Packet) { queue.Push(p) }
	wait := func() error {
		timer.Reset(a.pollInterval)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n := src.Available()
		if n <= 0 {
			if err := wait(); err != nil {
				return err
			}
			continue
		}

		if cap(buf) < n {
			buf = make([]byte, n)
		}
		buf = buf[:n]
		read, err := src.Read(buf)
		if read > 0 {
			if a.traceHandler != nil {
				a.traceHandler(buf[:read])
			}
			a.Feed(buf[:read], emit)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return err
			}
			a.handleError(fmt.Errorf("transport read: %w", err))
			if err := wait(); err != nil {
				return err
			}
		}
	}
}
