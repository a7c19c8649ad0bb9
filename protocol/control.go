package protocol

import "fmt"

// Axis masks select which fields of a control message are applied.
// Unset fields are ignored by the device.
const (
	RotationPitch = 1 << 0
	RotationRoll  = 1 << 1
	RotationYaw   = 1 << 2

	TranslationX = 1 << 0
	TranslationY = 1 << 1
	TranslationZ = 1 << 2

	WheelSteer    = 1 << 0
	WheelThrottle = 1 << 1
)

// Rotation mirrors struct { int16_t pitch, roll, yaw; byte mask; }
type Rotation struct {
	Pitch int16 `json:"pitch"`
	Roll  int16 `json:"roll"`
	Yaw   int16 `json:"yaw"`
	Mask  uint8 `json:"mask"`
}

// DecodeRotation decodes a little-endian Rotation payload
func DecodeRotation(b []byte) (Rotation, error) { return decodeFixed[Rotation](b) }

// MarshalBinary encodes the Rotation wire layout
func (r Rotation) MarshalBinary() ([]byte, error) { return encodeFixed(r) }

// Equal reports whether other is the same Rotation
func (r Rotation) Equal(other Payload) bool {
	o, ok := other.(Rotation)
	return ok && r == o
}

func (r Rotation) String() string {
	return fmt.Sprintf("pitch: %d roll: %d yaw: %d mask: 0x%02X", r.Pitch, r.Roll, r.Yaw, r.Mask)
}

// Translation mirrors struct { int16_t X, Y, Z; byte mask; }
type Translation struct {
	X    int16 `json:"x"`
	Y    int16 `json:"y"`
	Z    int16 `json:"z"`
	Mask uint8 `json:"mask"`
}

// DecodeTranslation decodes a little-endian Translation payload
func DecodeTranslation(b []byte) (Translation, error) { return decodeFixed[Translation](b) }

// MarshalBinary encodes the Translation wire layout
func (t Translation) MarshalBinary() ([]byte, error) { return encodeFixed(t) }

// Equal reports whether other is the same Translation
func (t Translation) Equal(other Payload) bool {
	o, ok := other.(Translation)
	return ok && t == o
}

func (t Translation) String() string {
	return fmt.Sprintf("x: %d y: %d z: %d mask: 0x%02X", t.X, t.Y, t.Z, t.Mask)
}

// Wheel mirrors struct { int16_t steer, throttle; byte mask; }
type Wheel struct {
	Steer    int16 `json:"steer"`
	Throttle int16 `json:"throttle"`
	Mask     uint8 `json:"mask"`
}

// DecodeWheel decodes a little-endian Wheel payload
func DecodeWheel(b []byte) (Wheel, error) { return decodeFixed[Wheel](b) }

// MarshalBinary encodes the Wheel wire layout
func (w Wheel) MarshalBinary() ([]byte, error) { return encodeFixed(w) }

// Equal reports whether other is the same Wheel
func (w Wheel) Equal(other Payload) bool {
	o, ok := other.(Wheel)
	return ok && w == o
}

func (w Wheel) String() string {
	return fmt.Sprintf("steer: %d throttle: %d mask: 0x%02X", w.Steer, w.Throttle, w.Mask)
}

// Throttle is the main vessel throttle, 0 to 32767.
type Throttle int16

// DecodeThrottle decodes a little-endian Throttle payload
func DecodeThrottle(b []byte) (Throttle, error) { return decodeFixed[Throttle](b) }

// MarshalBinary encodes the Throttle wire layout
func (t Throttle) MarshalBinary() ([]byte, error) { return encodeFixed(t) }

// Equal reports whether other is the same Throttle
func (t Throttle) Equal(other Payload) bool {
	o, ok := other.(Throttle)
	return ok && t == o
}

func (t Throttle) String() string {
	return fmt.Sprintf("throttle: %d", int16(t))
}
