package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Altitude mirrors struct { float sealevel; float surface; }
type Altitude struct {
	SeaLevel float32 `json:"sea_level"`
	Surface  float32 `json:"surface"`
}

// DecodeAltitude decodes a little-endian Altitude payload
func DecodeAltitude(b []byte) (Altitude, error) { return decodeFixed[Altitude](b) }

// MarshalBinary encodes the Altitude wire layout
func (a Altitude) MarshalBinary() ([]byte, error) { return encodeFixed(a) }

// Equal compares float fields within Epsilon
func (a Altitude) Equal(other Payload) bool {
	o, ok := other.(Altitude)
	return ok && floatEqual(a.SeaLevel, o.SeaLevel) && floatEqual(a.Surface, o.Surface)
}

func (a Altitude) String() string {
	return fmt.Sprintf("Sea Level: %v, Surface: %v", a.SeaLevel, a.Surface)
}

// Apsides mirrors struct { float periapsis; float apoapsis; }
type Apsides struct {
	Periapsis float32 `json:"periapsis"`
	Apoapsis  float32 `json:"apoapsis"`
}

// DecodeApsides decodes a little-endian Apsides payload
func DecodeApsides(b []byte) (Apsides, error) { return decodeFixed[Apsides](b) }

// MarshalBinary encodes the Apsides wire layout
func (a Apsides) MarshalBinary() ([]byte, error) { return encodeFixed(a) }

// Equal compares float fields within Epsilon
func (a Apsides) Equal(other Payload) bool {
	o, ok := other.(Apsides)
	return ok && floatEqual(a.Periapsis, o.Periapsis) && floatEqual(a.Apoapsis, o.Apoapsis)
}

func (a Apsides) String() string {
	return fmt.Sprintf("Periapsis: %v, Apoapsis: %v", a.Periapsis, a.Apoapsis)
}

// ApsidesTime holds seconds until periapsis and apoapsis.
type ApsidesTime struct {
	Periapsis int32 `json:"periapsis"`
	Apoapsis  int32 `json:"apoapsis"`
}

// DecodeApsidesTime decodes a little-endian ApsidesTime payload
func DecodeApsidesTime(b []byte) (ApsidesTime, error) { return decodeFixed[ApsidesTime](b) }

// MarshalBinary encodes the ApsidesTime wire layout
func (a ApsidesTime) MarshalBinary() ([]byte, error) { return encodeFixed(a) }

// Equal reports whether other is the same ApsidesTime
func (a ApsidesTime) Equal(other Payload) bool {
	o, ok := other.(ApsidesTime)
	return ok && a == o
}

func (a ApsidesTime) String() string {
	return fmt.Sprintf("Periapsis: %ds, Apoapsis: %ds", a.Periapsis, a.Apoapsis)
}

// Resource is shared by every resource channel.
type Resource struct {
	Total     float32 `json:"total"`
	Available float32 `json:"available"`
}

// DecodeResource decodes a little-endian Resource payload
func DecodeResource(b []byte) (Resource, error) { return decodeFixed[Resource](b) }

// MarshalBinary encodes the Resource wire layout
func (r Resource) MarshalBinary() ([]byte, error) { return encodeFixed(r) }

// Equal compares float fields within Epsilon
func (r Resource) Equal(other Payload) bool {
	o, ok := other.(Resource)
	return ok && floatEqual(r.Total, o.Total) && floatEqual(r.Available, o.Available)
}

func (r Resource) String() string {
	return fmt.Sprintf("%v / %v", r.Available, r.Total)
}

// Velocity mirrors struct { float orbital; float surface; float vertical; }
type Velocity struct {
	Orbital  float32 `json:"orbital"`
	Surface  float32 `json:"surface"`
	Vertical float32 `json:"vertical"`
}

// DecodeVelocity decodes a little-endian Velocity payload
func DecodeVelocity(b []byte) (Velocity, error) { return decodeFixed[Velocity](b) }

// MarshalBinary encodes the Velocity wire layout
func (v Velocity) MarshalBinary() ([]byte, error) { return encodeFixed(v) }

// Equal compares float fields within Epsilon
func (v Velocity) Equal(other Payload) bool {
	o, ok := other.(Velocity)
	return ok && floatEqual(v.Orbital, o.Orbital) && floatEqual(v.Surface, o.Surface) &&
		floatEqual(v.Vertical, o.Vertical)
}

func (v Velocity) String() string {
	return fmt.Sprintf("Orbital: %v, Surface: %v, Vertical: %v", v.Orbital, v.Surface, v.Vertical)
}

// Target describes the object targeted by the active vessel.
type Target struct {
	Distance float32 `json:"distance"`
	Velocity float32 `json:"velocity"`
}

// DecodeTarget decodes a little-endian Target payload
func DecodeTarget(b []byte) (Target, error) { return decodeFixed[Target](b) }

// MarshalBinary encodes the Target wire layout
func (t Target) MarshalBinary() ([]byte, error) { return encodeFixed(t) }

// Equal compares float fields within Epsilon
func (t Target) Equal(other Payload) bool {
	o, ok := other.(Target)
	return ok && floatEqual(t.Distance, o.Distance) && floatEqual(t.Velocity, o.Velocity)
}

func (t Target) String() string {
	return fmt.Sprintf("Distance: %v, Velocity: %v", t.Distance, t.Velocity)
}

// Airspeed carries indicated airspeed and mach number.
type Airspeed struct {
	IndicatedAirspeed float32 `json:"indicated_airspeed"`
	Mach              float32 `json:"mach"`
}

// DecodeAirspeed decodes a little-endian Airspeed payload
func DecodeAirspeed(b []byte) (Airspeed, error) { return decodeFixed[Airspeed](b) }

// MarshalBinary encodes the Airspeed wire layout
func (a Airspeed) MarshalBinary() ([]byte, error) { return encodeFixed(a) }

// Equal compares float fields within Epsilon
func (a Airspeed) Equal(other Payload) bool {
	o, ok := other.(Airspeed)
	return ok && floatEqual(a.IndicatedAirspeed, o.IndicatedAirspeed) && floatEqual(a.Mach, o.Mach)
}

func (a Airspeed) String() string {
	return fmt.Sprintf("Indicated: %v, Mach: %v", a.IndicatedAirspeed, a.Mach)
}

// ActionGroups is the action status bitmask.
type ActionGroups uint8

// DecodeActionGroups reads the action status bitmask byte
func DecodeActionGroups(b []byte) (ActionGroups, error) {
	if len(b) < 1 {
		return 0, fmt.Errorf("%w: action status needs 1 byte, got 0", ErrMalformedPayload)
	}
	return ActionGroups(b[0]), nil
}

// Has reports whether the given group is active
func (a ActionGroups) Has(g ActionGroup) bool {
	return uint8(a)&uint8(g) != 0
}

// MarshalBinary encodes the ActionGroups wire layout
func (a ActionGroups) MarshalBinary() ([]byte, error) { return []byte{uint8(a)}, nil }

// Equal reports whether other is the same ActionGroups
func (a ActionGroups) Equal(other Payload) bool {
	o, ok := other.(ActionGroups)
	return ok && a == o
}

func (a ActionGroups) String() string {
	parts := make([]string, 0, len(actionGroupOrder))
	for _, g := range actionGroupOrder {
		state := "OFF"
		if a.Has(g) {
			state = "ON"
		}
		parts = append(parts, g.String()+": "+state)
	}
	return strings.Join(parts, " ")
}

// MarshalJSON renders the bitmask as {"stage": false, "sas": true, ...}
func (a ActionGroups) MarshalJSON() ([]byte, error) {
	out := make(map[string]bool, len(actionGroupOrder))
	for _, g := range actionGroupOrder {
		out[g.String()] = a.Has(g)
	}
	return json.Marshal(out)
}

// SphereOfInfluence is the English name of the body currently orbited.
type SphereOfInfluence string

// DecodeSphereOfInfluence trims trailing NUL and whitespace; it never fails
func DecodeSphereOfInfluence(b []byte) (SphereOfInfluence, error) {
	return SphereOfInfluence(strings.TrimRight(string(b), "\x00 \t\r\n")), nil
}

// MarshalBinary encodes the SphereOfInfluence wire layout
func (s SphereOfInfluence) MarshalBinary() ([]byte, error) {
	if len(s) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: sphere of influence name is %d bytes", ErrPayloadTooLarge, len(s))
	}
	return []byte(s), nil
}

// Equal reports whether other is the same SphereOfInfluence
func (s SphereOfInfluence) Equal(other Payload) bool {
	o, ok := other.(SphereOfInfluence)
	return ok && s == o
}

func (s SphereOfInfluence) String() string {
	return string(s)
}
