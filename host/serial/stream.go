package serial

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

// DefaultInputBuffer is the default capacity of the stream's input ring.
const DefaultInputBuffer = 4096

// DefaultCloseTimeout bounds how long Close waits for the reader to exit
const DefaultCloseTimeout = time.Second

// ErrCloseTimeout is returned by Close when the reader is still blocked
// in the port after the close timeout.
var ErrCloseTimeout = errors.New("serial: reader did not stop")

// Stream adapts a blocking Port to the non-blocking Transport contract.
// A background reader copies everything the port returns into a ring
// buffer; Available and Read only touch that buffer.
type Stream struct {
	port Port

	mu    sync.Mutex
	input *ringBuffer
	err   error // sticky read error, reported once the ring is drained

	writeMutex sync.Mutex

	errorHandler func(error)
	closeTimeout time.Duration

	stopChan chan struct{}
	doneChan chan struct{}
	stopOnce sync.Once
}

// StreamOption configures a Stream
type StreamOption func(*Stream)

// WithInputBuffer sets the ring buffer capacity
func WithInputBuffer(n int) StreamOption {
	return func(s *Stream) {
		if n > 0 {
			s.input = newRingBuffer(n)
		}
	}
}

// WithStreamErrorHandler receives transient read errors from the port
func WithStreamErrorHandler(fn func(error)) StreamOption {
	return func(s *Stream) {
		if fn != nil {
			s.errorHandler = fn
		}
	}
}

// WithCloseTimeout sets how long Close waits for the reader to exit
func WithCloseTimeout(d time.Duration) StreamOption {
	return func(s *Stream) {
		if d > 0 {
			s.closeTimeout = d
		}
	}
}

// NewStream starts the background reader on port
func NewStream(port Port, opts ...StreamOption) *Stream {
	s := &Stream{
		port:         port,
		input:        newRingBuffer(DefaultInputBuffer),
		closeTimeout: DefaultCloseTimeout,
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	go s.readLoop()

	return s
}

// Available returns the number of buffered input bytes. If the port has
// failed and the buffer is empty it returns 1 so the next Read surfaces
// the error.
func (s *Stream) Available() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := s.input.Available(); n > 0 {
		return n
	}
	if s.err != nil {
		return 1
	}
	return 0
}

// Read drains up to len(p) buffered bytes
func (s *Stream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.input.Read(p)
	if n == 0 && s.err != nil {
		return 0, s.err
	}
	return n, nil
}

// Write sends p to the port. Concurrent writers are serialised so frames
// never interleave.
func (s *Stream) Write(p []byte) (int, error) {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	return s.port.Write(p)
}

// Dropped returns the number of input bytes lost to ring overflow
func (s *Stream) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input.dropped
}

// Close stops the reader and closes the port. A reader stuck in a port
// Read that ignores the close is abandoned after the close timeout.
func (s *Stream) Close() error {
	var err error
	s.stopOnce.Do(func() {
		close(s.stopChan)
		err = s.port.Close()

		timer := time.NewTimer(s.closeTimeout)
		defer timer.Stop()
		select {
		case <-s.doneChan:
		case <-timer.C:
			s.setErr(io.EOF)
			err = errors.Join(err, ErrCloseTimeout)
		}
	})
	return err
}

// readLoop continuously reads from the port into the ring buffer
func (s *Stream) readLoop() {
	defer close(s.doneChan)

	buffer := make([]byte, 256)

	for {
		select {
		case <-s.stopChan:
			s.setErr(io.EOF)
			return
		default:
		}

		n, err := s.port.Read(buffer)
		if n > 0 {
			s.mu.Lock()
			s.input.Write(buffer[:n])
			s.mu.Unlock()
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				s.setErr(io.EOF)
				return
			}
			if s.errorHandler != nil {
				s.errorHandler(fmt.Errorf("serial read: %w", err))
			}
			// Back off so a failing port does not spin
			select {
			case <-s.stopChan:
				s.setErr(io.EOF)
				return
			case <-time.After(10 * time.Millisecond):
			}
		}
	}
}

func (s *Stream) setErr(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
}
