package serial

import (
	"io"
	"sync"
)

// Loopback is an in-memory Port and Transport. Bytes injected with Inject
// are what the "device" sends; everything written is recorded and can be
// answered from an OnWrite hook.
type Loopback struct {
	mu         sync.Mutex
	input      []byte
	writes     [][]byte
	onWrite    func(p []byte)
	writeLimit int
	closed     bool
}

// NewLoopback creates an empty loopback transport
func NewLoopback() *Loopback {
	return &Loopback{}
}

// Inject queues bytes for the reader
func (l *Loopback) Inject(p []byte) {
	l.mu.Lock()
	l.input = append(l.input, p...)
	l.mu.Unlock()
}

// OnWrite installs a hook called with a copy of every write. The hook may
// call Inject to simulate a device reply.
func (l *Loopback) OnWrite(fn func(p []byte)) {
	l.mu.Lock()
	l.onWrite = fn
	l.mu.Unlock()
}

// LimitWrites truncates every subsequent write to at most n bytes,
// simulating a partial write. Zero removes the limit.
func (l *Loopback) LimitWrites(n int) {
	l.mu.Lock()
	l.writeLimit = n
	l.mu.Unlock()
}

// Writes returns a copy of everything written so far, one entry per call
func (l *Loopback) Writes() [][]byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([][]byte, len(l.writes))
	for i, w := range l.writes {
		out[i] = append([]byte(nil), w...)
	}
	return out
}

// Available returns the number of injected bytes not yet read
func (l *Loopback) Available() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed && len(l.input) == 0 {
		return 1
	}
	return len(l.input)
}

// Read drains injected bytes, returning io.EOF once closed and empty
func (l *Loopback) Read(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.input) == 0 {
		if l.closed {
			return 0, io.EOF
		}
		return 0, nil
	}
	n := copy(p, l.input)
	l.input = l.input[n:]
	return n, nil
}

// Write records p and passes it to the OnWrite hook
func (l *Loopback) Write(p []byte) (int, error) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return 0, io.ErrClosedPipe
	}
	n := len(p)
	if l.writeLimit > 0 && n > l.writeLimit {
		n = l.writeLimit
	}
	written := append([]byte(nil), p[:n]...)
	l.writes = append(l.writes, written)
	hook := l.onWrite
	l.mu.Unlock()

	if hook != nil {
		hook(append([]byte(nil), written...))
	}
	return n, nil
}

// Flush drops pending input
func (l *Loopback) Flush() error {
	l.mu.Lock()
	l.input = nil
	l.mu.Unlock()
	return nil
}

// Close makes further reads return io.EOF once drained
func (l *Loopback) Close() error {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	return nil
}
