// Package protocol implements the KerbalSimpit serial protocol
package protocol

// Version is the KerbalSimpit protocol version announced during the handshake.
// It must be exactly five bytes long.
const Version = "1.1.3"

// Frame layout constants
const (
	PacketSize     = 64 // Every frame on the wire is exactly this long
	HeaderSize     = 4  // Header bytes + size + type
	MaxPayloadSize = PacketSize - HeaderSize

	HeaderByte0 = 0xAA
	HeaderByte1 = 0x50

	PositionHeader0 = 0
	PositionHeader1 = 1
	PositionSize    = 2
	PositionType    = 3
)

// Handshake markers, carried as the first byte of a SYNC payload
const (
	HandshakeSyn    = 0x00
	HandshakeAck    = 0x01
	HandshakeSynAck = 0x02
)
