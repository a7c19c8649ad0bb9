package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// Epsilon is the absolute tolerance used when comparing float payload fields.
// The device re-sends unchanged telemetry, so equality only has to mean
// "no observable change".
const Epsilon = 1e-6

// Payload is a decoded telemetry or control value.
type Payload interface {
	// Equal reports whether other carries the same value
	Equal(other Payload) bool
	// String renders the value for logs and status output
	String() string
	// MarshalBinary encodes the value in its wire layout
	MarshalBinary() ([]byte, error)
}

// Decoder turns raw payload bytes into a typed Payload.
type Decoder func(payload []byte) (Payload, error)

var decoders = map[Datagram]Decoder{
	DatagramAltitude:          adapt(DecodeAltitude),
	DatagramApsides:           adapt(DecodeApsides),
	DatagramLiquidFuel:        adapt(DecodeResource),
	DatagramLiquidFuelStage:   adapt(DecodeResource),
	DatagramOxidizer:          adapt(DecodeResource),
	DatagramOxidizerStage:     adapt(DecodeResource),
	DatagramSolidFuel:         adapt(DecodeResource),
	DatagramSolidFuelStage:    adapt(DecodeResource),
	DatagramMonopropellant:    adapt(DecodeResource),
	DatagramElectricCharge:    adapt(DecodeResource),
	DatagramEVAPropellant:     adapt(DecodeResource),
	DatagramOre:               adapt(DecodeResource),
	DatagramAblator:           adapt(DecodeResource),
	DatagramAblatorStage:      adapt(DecodeResource),
	DatagramVelocity:          adapt(DecodeVelocity),
	DatagramActionStatus:      adapt(DecodeActionGroups),
	DatagramApsidesTime:       adapt(DecodeApsidesTime),
	DatagramTargetInfo:        adapt(DecodeTarget),
	DatagramSphereOfInfluence: adapt(DecodeSphereOfInfluence),
	DatagramAirspeed:          adapt(DecodeAirspeed),
}

// DecoderFor returns the payload decoder for a telemetry datagram.
// Handshake, echo and scene change datagrams have no typed payload.
func DecoderFor(d Datagram) (Decoder, bool) {
	dec, ok := decoders[d]
	return dec, ok
}

func adapt[T Payload](fn func([]byte) (T, error)) Decoder {
	return func(payload []byte) (Payload, error) {
		v, err := fn(payload)
		if err != nil {
			return nil, err
		}
		return v, nil
	}
}

// decodeFixed reads a little-endian fixed layout record from the front of b.
// Trailing bytes are ignored, a short buffer is ErrMalformedPayload.
func decodeFixed[T any](b []byte) (T, error) {
	var v T
	size := binary.Size(v)
	if size < 0 {
		return v, fmt.Errorf("unsupported payload layout %T", v)
	}
	if len(b) < size {
		return v, fmt.Errorf("%w: %T needs %d bytes, got %d", ErrMalformedPayload, v, size, len(b))
	}
	if err := binary.Read(bytes.NewReader(b[:size]), binary.LittleEndian, &v); err != nil {
		return v, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return v, nil
}

func encodeFixed(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func floatEqual(a, b float32) bool {
	return math.Abs(float64(a)-float64(b)) <= Epsilon
}
