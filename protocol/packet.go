package protocol

import (
	"errors"
	"fmt"
)

// Errors returned by the frame and payload codecs. Callers match them
// with errors.Is.
var (
	ErrInvalidPacket    = errors.New("protocol: invalid packet")
	ErrPayloadTooLarge  = errors.New("protocol: payload too large")
	ErrMalformedPayload = errors.New("protocol: malformed payload")
)

// MessageType is implemented by Command and Datagram.
type MessageType interface {
	Code() uint8
	String() string
}

// Packet is one decoded frame received from the device.
// Packets are only built by Decode and are never modified afterwards.
type Packet struct {
	datagram Datagram
	code     uint8
	payload  []byte
}

// Type returns the datagram type, DatagramUndefined for unknown codes
func (p Packet) Type() Datagram {
	return p.datagram
}

// Code returns the raw type byte as seen on the wire
func (p Packet) Code() uint8 {
	return p.code
}

// Payload returns a copy of the payload bytes
func (p Packet) Payload() []byte {
	return append([]byte(nil), p.payload...)
}

// Len returns the payload length
func (p Packet) Len() int {
	return len(p.payload)
}

func (p Packet) String() string {
	return fmt.Sprintf("%s[%d] %s", p.datagram, len(p.payload), HexString(p.payload))
}

// Encode builds the fixed 64 byte frame for a message:
// 0xAA 0x50 <len> <type> <payload...> <zero padding>
func Encode(t MessageType, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrPayloadTooLarge, len(payload), MaxPayloadSize)
	}

	frame := make([]byte, PacketSize)
	frame[PositionHeader0] = HeaderByte0
	frame[PositionHeader1] = HeaderByte1
	frame[PositionSize] = uint8(len(payload))
	frame[PositionType] = t.Code()
	copy(frame[HeaderSize:], payload)

	return frame, nil
}

// Decode validates a complete 64 byte frame and extracts its packet.
// The zero padding after the declared payload is ignored.
func Decode(frame []byte) (Packet, error) {
	if len(frame) != PacketSize {
		return Packet{}, fmt.Errorf("%w: frame length %d (want %d)", ErrInvalidPacket, len(frame), PacketSize)
	}
	if frame[PositionHeader0] != HeaderByte0 || frame[PositionHeader1] != HeaderByte1 {
		return Packet{}, fmt.Errorf("%w: bad header 0x%02X 0x%02X", ErrInvalidPacket, frame[PositionHeader0], frame[PositionHeader1])
	}

	size := int(frame[PositionSize])
	if size > MaxPayloadSize {
		return Packet{}, fmt.Errorf("%w: declared payload length %d (max %d)", ErrInvalidPacket, size, MaxPayloadSize)
	}

	code := frame[PositionType]
	payload := make([]byte, size)
	copy(payload, frame[HeaderSize:HeaderSize+size])

	return Packet{
		datagram: DatagramFromCode(code),
		code:     code,
		payload:  payload,
	}, nil
}

// HexString renders bytes as space separated upper case hex pairs
func HexString(b []byte) string {
	return fmt.Sprintf("% X", b)
}
