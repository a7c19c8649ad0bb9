package protocol

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"
)

func altitudeFrame(t *testing.T) ([]byte, []byte) {
	t.Helper()
	payload, err := Altitude{SeaLevel: 1234.5, Surface: 321.25}.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary failed: %v", err)
	}
	frame, err := Encode(DatagramAltitude, payload)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	return frame, payload
}

func feedChunks(a *Assembler, stream []byte, chunk int) []Packet {
	var out []Packet
	emit := func(p Packet) { out = append(out, p) }
	for i := 0; i < len(stream); i += chunk {
		end := min(i+chunk, len(stream))
		a.Feed(stream[i:end], emit)
	}
	return out
}

func TestAssemblerChunkings(t *testing.T) {
	frame, payload := altitudeFrame(t)

	if !bytes.Equal(frame[:4], []byte{0xAA, 0x50, 0x08, 0x08}) {
		t.Fatalf("Unexpected frame header % X", frame[:4])
	}

	for chunk := 1; chunk <= len(frame); chunk++ {
		a := NewAssembler()
		packets := feedChunks(a, frame, chunk)
		if len(packets) != 1 {
			t.Fatalf("chunk %d: expected 1 packet, got %d", chunk, len(packets))
		}
		if packets[0].Type() != DatagramAltitude {
			t.Errorf("chunk %d: expected Altitude, got %v", chunk, packets[0].Type())
		}
		if !bytes.Equal(packets[0].Payload(), payload) {
			t.Errorf("chunk %d: expected payload % X, got % X", chunk, payload, packets[0].Payload())
		}
	}
}

func TestAssemblerWithoutPadding(t *testing.T) {
	frame, _ := altitudeFrame(t)
	short := frame[:HeaderSize+8]

	a := NewAssembler()
	packets := feedChunks(a, append(append([]byte(nil), short...), short...), 3)
	if len(packets) != 2 {
		t.Fatalf("Expected 2 packets from unpadded frames, got %d", len(packets))
	}
}

func TestAssemblerResyncOnGarbage(t *testing.T) {
	frame, payload := altitudeFrame(t)

	stream := []byte{0x00, 0x13, 0xAA, 0x01, 0x50, 0xFF, 0xAA}
	stream = append(stream, frame...)

	var errs []error
	a := NewAssembler(WithErrorHandler(func(err error) { errs = append(errs, err) }))
	packets := feedChunks(a, stream, len(stream))

	if len(packets) != 1 {
		t.Fatalf("Expected 1 packet, got %d", len(packets))
	}
	if !bytes.Equal(packets[0].Payload(), payload) {
		t.Errorf("Expected payload % X, got % X", payload, packets[0].Payload())
	}
	if a.Discarded() == 0 {
		t.Errorf("Expected stray bytes to be counted")
	}
	if len(errs) != 0 {
		t.Errorf("Expected no decode errors, got %v", errs)
	}
}

func TestAssemblerRejectsOversizedLength(t *testing.T) {
	frame, _ := altitudeFrame(t)
	stream := []byte{0xAA, 0x50, 0xFF, 0x08, 0x01, 0x02}
	stream = append(stream, frame...)

	var errs []error
	a := NewAssembler(WithErrorHandler(func(err error) { errs = append(errs, err) }))
	packets := feedChunks(a, stream, 5)

	if len(packets) != 1 {
		t.Fatalf("Expected 1 packet after bad length, got %d", len(packets))
	}
	if len(errs) != 1 || !errors.Is(errs[0], ErrInvalidPacket) {
		t.Errorf("Expected one ErrInvalidPacket, got %v", errs)
	}
	if a.Invalid() != 1 {
		t.Errorf("Expected invalid count 1, got %d", a.Invalid())
	}
}

func TestAssemblerEmptyPayload(t *testing.T) {
	frame, _ := Encode(DatagramSceneChange, nil)
	a := NewAssembler()
	packets := feedChunks(a, frame[:HeaderSize], 1)
	if len(packets) != 1 || packets[0].Len() != 0 {
		t.Fatalf("Expected one empty packet, got %v", packets)
	}
}

// chunkSource hands out queued chunks one Read at a time
type chunkSource struct {
	mu     sync.Mutex
	chunks [][]byte
	eof    bool
}

func (s *chunkSource) Available() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.chunks) == 0 {
		if s.eof {
			return 1
		}
		return 0
	}
	return len(s.chunks[0])
}

func (s *chunkSource) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, s.chunks[0])
	s.chunks = s.chunks[1:]
	return n, nil
}

func TestAssemblerRun(t *testing.T) {
	frame, _ := altitudeFrame(t)
	src := &chunkSource{
		chunks: [][]byte{frame[:10], frame[10:40], frame[40:], frame},
		eof:    true,
	}
	queue := NewPacketQueue(DefaultQueueSize)
	a := NewAssembler(WithPollInterval(time.Millisecond))

	err := a.Run(context.Background(), src, queue)
	if !errors.Is(err, io.EOF) {
		t.Fatalf("Expected io.EOF, got %v", err)
	}
	if queue.Len() != 2 {
		t.Errorf("Expected 2 queued packets, got %d", queue.Len())
	}
	if a.Frames() != 2 {
		t.Errorf("Expected frame count 2, got %d", a.Frames())
	}
}

func TestAssemblerRunCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	a := NewAssembler(WithPollInterval(time.Millisecond))

	go func() {
		done <- a.Run(ctx, &chunkSource{}, NewPacketQueue(1))
	}()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
