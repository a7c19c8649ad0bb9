package serial

// ringBuffer is a circular byte buffer for serial input.
// Unlike a blocking FIFO it never refuses input: when full the oldest
// bytes are overwritten, the frame assembler resynchronises on the next
// header.
type ringBuffer struct {
	buf     []byte
	read    int
	write   int
	count   int
	dropped uint64
}

func newRingBuffer(capacity int) *ringBuffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &ringBuffer{buf: make([]byte, capacity)}
}

// Write appends data, overwriting the oldest bytes on overflow
func (r *ringBuffer) Write(data []byte) {
	size := len(r.buf)
	for _, b := range data {
		if r.count == size {
			r.read = (r.read + 1) % size
			r.count--
			r.dropped++
		}
		r.buf[r.write] = b
		r.write = (r.write + 1) % size
		r.count++
	}
}

// Read reads up to len(data) bytes from the buffer
func (r *ringBuffer) Read(data []byte) int {
	size := len(r.buf)
	n := 0
	for n < len(data) && r.count > 0 {
		data[n] = r.buf[r.read]
		r.read = (r.read + 1) % size
		r.count--
		n++
	}
	return n
}

// Available returns the number of bytes available for reading
func (r *ringBuffer) Available() int {
	return r.count
}
