package protocol

import (
	"context"
	"sync"
)

// DefaultQueueSize is the number of undelivered packets kept before the
// oldest is dropped.
const DefaultQueueSize = 10

// PacketQueue is a bounded FIFO between the assembler and its consumer.
// When full, Push drops the oldest packet: telemetry is latest-value-wins.
type PacketQueue struct {
	mu       sync.Mutex
	items    []Packet
	capacity int
	dropped  uint64

	// notify holds at most one pending wakeup for a blocked Pop
	notify chan struct{}
}

// NewPacketQueue creates a queue holding at most capacity packets
func NewPacketQueue(capacity int) *PacketQueue {
	if capacity <= 0 {
		capacity = DefaultQueueSize
	}
	return &PacketQueue{
		items:    make([]Packet, 0, capacity),
		capacity: capacity,
		notify:   make(chan struct{}, 1),
	}
}

// Push appends a packet, returning true if an older packet was dropped to
// make room.
func (q *PacketQueue) Push(p Packet) bool {
	q.mu.Lock()
	dropped := false
	if len(q.items) >= q.capacity {
		// Shift instead of reslicing so the backing array does not creep
		copy(q.items, q.items[1:])
		q.items = q.items[:len(q.items)-1]
		q.dropped++
		dropped = true
	}
	q.items = append(q.items, p)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return dropped
}

// TryPop removes the oldest packet without blocking
func (q *PacketQueue) TryPop() (Packet, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return Packet{}, false
	}
	p := q.items[0]
	copy(q.items, q.items[1:])
	q.items = q.items[:len(q.items)-1]
	return p, true
}

// Pop blocks until a packet is available or ctx is done
func (q *PacketQueue) Pop(ctx context.Context) (Packet, error) {
	for {
		if p, ok := q.TryPop(); ok {
			return p, nil
		}
		select {
		case <-ctx.Done():
			return Packet{}, ctx.Err()
		case <-q.notify:
		}
	}
}

// Len returns the number of queued packets
func (q *PacketQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Cap returns the queue capacity
func (q *PacketQueue) Cap() int {
	return q.capacity
}

// Dropped returns how many packets were discarded on overflow
func (q *PacketQueue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
