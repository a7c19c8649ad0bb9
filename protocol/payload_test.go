package protocol

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestPayloadRoundTrip(t *testing.T) {
	testCases := []struct {
		name    string
		value   Payload
		decoder Decoder
	}{
		{"altitude", Altitude{SeaLevel: 123.456, Surface: 234.567}, adapt(DecodeAltitude)},
		{"apsides", Apsides{Periapsis: 70000.5, Apoapsis: 85000.25}, adapt(DecodeApsides)},
		{"apsides time", ApsidesTime{Periapsis: -12, Apoapsis: 3600}, adapt(DecodeApsidesTime)},
		{"resource", Resource{Total: 360, Available: 180.5}, adapt(DecodeResource)},
		{"velocity", Velocity{Orbital: 2295.1, Surface: 2100.7, Vertical: -3.25}, adapt(DecodeVelocity)},
		{"target", Target{Distance: 1500, Velocity: -2.5}, adapt(DecodeTarget)},
		{"airspeed", Airspeed{IndicatedAirspeed: 210.5, Mach: 0.62}, adapt(DecodeAirspeed)},
		{"action groups", ActionGroups(ActionGear | ActionBrakes), adapt(DecodeActionGroups)},
		{"soi", SphereOfInfluence("Kerbin"), adapt(DecodeSphereOfInfluence)},
		{"rotation", Rotation{Pitch: -100, Roll: 200, Yaw: 32767, Mask: RotationPitch | RotationYaw}, adapt(DecodeRotation)},
		{"translation", Translation{X: 1, Y: -1, Z: 0, Mask: TranslationX | TranslationY}, adapt(DecodeTranslation)},
		{"wheel", Wheel{Steer: -32768, Throttle: 1000, Mask: WheelSteer}, adapt(DecodeWheel)},
		{"throttle", Throttle(16384), adapt(DecodeThrottle)},
	}

	for _, tc := range testCases {
		raw, err := tc.value.MarshalBinary()
		if err != nil {
			t.Errorf("%s: MarshalBinary failed: %v", tc.name, err)
			continue
		}
		got, err := tc.decoder(raw)
		if err != nil {
			t.Errorf("%s: decode failed: %v", tc.name, err)
			continue
		}
		if !got.Equal(tc.value) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.value, got)
		}
	}
}

func TestPayloadSizes(t *testing.T) {
	testCases := []struct {
		value Payload
		size  int
	}{
		{Altitude{}, 8},
		{Velocity{}, 12},
		{ApsidesTime{}, 8},
		{ActionGroups(0), 1},
		{Rotation{}, 7},
		{Wheel{}, 5},
		{Throttle(0), 2},
	}

	for _, tc := range testCases {
		raw, _ := tc.value.MarshalBinary()
		if len(raw) != tc.size {
			t.Errorf("%T: expected %d bytes, got %d", tc.value, tc.size, len(raw))
		}
	}
}

func TestAltitudeLittleEndian(t *testing.T) {
	// 1.0f = 0x3F800000, 2.0f = 0x40000000
	raw := []byte{0x00, 0x00, 0x80, 0x3F, 0x00, 0x00, 0x00, 0x40}
	alt, err := DecodeAltitude(raw)
	if err != nil {
		t.Fatalf("DecodeAltitude failed: %v", err)
	}
	if alt.SeaLevel != 1 || alt.Surface != 2 {
		t.Errorf("Expected {1 2}, got %+v", alt)
	}
}

func TestDecodeShortPayload(t *testing.T) {
	short := []struct {
		name string
		fn   Decoder
		b    []byte
	}{
		{"altitude", adapt(DecodeAltitude), make([]byte, 7)},
		{"velocity", adapt(DecodeVelocity), make([]byte, 8)},
		{"apsides time", adapt(DecodeApsidesTime), make([]byte, 4)},
		{"action groups", adapt(DecodeActionGroups), nil},
	}

	for _, tc := range short {
		if _, err := tc.fn(tc.b); !errors.Is(err, ErrMalformedPayload) {
			t.Errorf("%s: expected ErrMalformedPayload, got %v", tc.name, err)
		}
	}
}

func TestFloatTolerance(t *testing.T) {
	a := Altitude{SeaLevel: 1.0, Surface: 2.0}
	if !a.Equal(Altitude{SeaLevel: 1.0 + 5e-7, Surface: 2.0}) {
		t.Errorf("Expected values within tolerance to be equal")
	}
	if a.Equal(Altitude{SeaLevel: 1.001, Surface: 2.0}) {
		t.Errorf("Expected values outside tolerance to differ")
	}
	if a.Equal(Apsides{Periapsis: 1.0, Apoapsis: 2.0}) {
		t.Errorf("Expected different variants to never be equal")
	}

	// Both fields must be compared independently
	as := Airspeed{IndicatedAirspeed: 100, Mach: 0.3}
	if as.Equal(Airspeed{IndicatedAirspeed: 100, Mach: 0.4}) {
		t.Errorf("Expected differing mach to be unequal")
	}
}

func TestActionGroupsDisplay(t *testing.T) {
	groups, err := DecodeActionGroups([]byte{0b00010001})
	if err != nil {
		t.Fatalf("DecodeActionGroups failed: %v", err)
	}

	want := "stage: ON gear: OFF lights: OFF rcs: OFF sas: ON brakes: OFF abort: OFF"
	if groups.String() != want {
		t.Errorf("Expected %q, got %q", want, groups.String())
	}
	if !groups.Has(ActionStage) || !groups.Has(ActionSAS) || groups.Has(ActionAbort) {
		t.Errorf("Unexpected bit decoding for %08b", uint8(groups))
	}

	raw, err := json.Marshal(groups)
	if err != nil {
		t.Fatalf("json.Marshal failed: %v", err)
	}
	var decoded map[string]bool
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("json.Unmarshal failed: %v", err)
	}
	if !decoded["stage"] || !decoded["sas"] || decoded["gear"] {
		t.Errorf("Unexpected JSON %s", raw)
	}
}

func TestSphereOfInfluenceTrim(t *testing.T) {
	soi, _ := DecodeSphereOfInfluence([]byte("Mun \x00\x00\x00"))
	if soi != "Mun" {
		t.Errorf("Expected %q, got %q", "Mun", soi)
	}

	_, err := SphereOfInfluence(strings.Repeat("x", MaxPayloadSize+1)).MarshalBinary()
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Errorf("Expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestDecoderTable(t *testing.T) {
	for _, d := range Datagrams() {
		_, ok := DecoderFor(d)
		switch d {
		case DatagramSync, DatagramEchoRequest, DatagramEchoResponse, DatagramSceneChange:
			if ok {
				t.Errorf("Expected no decoder for %v", d)
			}
		default:
			if !ok {
				t.Errorf("Expected decoder for %v", d)
			}
		}
	}

	dec, _ := DecoderFor(DatagramOre)
	raw, _ := Resource{Total: 10, Available: 5}.MarshalBinary()
	p, err := dec(raw)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if _, ok := p.(Resource); !ok {
		t.Errorf("Expected Resource, got %T", p)
	}
}
