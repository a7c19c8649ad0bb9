package protocol

import "strings"

// Command identifies a packet sent from the host to the device.
type Command uint8

// Command codes
const (
	CommandSync             Command = 0
	CommandEchoRequest      Command = 1
	CommandEchoResponse     Command = 2
	CommandRegister         Command = 8
	CommandDeregister       Command = 9
	CommandCustomActivate   Command = 10
	CommandCustomDeactivate Command = 11
	CommandCustomToggle     Command = 12
	CommandActivate         Command = 13
	CommandDeactivate       Command = 14
	CommandToggle           Command = 15
	CommandRotation         Command = 16
	CommandTranslation      Command = 17
	CommandWheel            Command = 18
	CommandThrottle         Command = 19

	// CommandUndefined is returned for codes outside the enumeration
	CommandUndefined Command = 0xFF
)

var commandNames = map[Command]string{
	CommandSync:             "SYNC",
	CommandEchoRequest:      "ECHO request",
	CommandEchoResponse:     "ECHO response",
	CommandRegister:         "Register",
	CommandDeregister:       "Deregister",
	CommandCustomActivate:   "Custom action group activate",
	CommandCustomDeactivate: "Custom action group deactivate",
	CommandCustomToggle:     "Custom action group toggle",
	CommandActivate:         "Action group activate",
	CommandDeactivate:       "Action group deactivate",
	CommandToggle:           "Action group toggle",
	CommandRotation:         "Rotation",
	CommandTranslation:      "Translation",
	CommandWheel:            "Wheel",
	CommandThrottle:         "Throttle",
}

// CommandFromCode resolves a wire code, falling back to CommandUndefined.
func CommandFromCode(code uint8) Command {
	c := Command(code)
	if _, ok := commandNames[c]; ok {
		return c
	}
	return CommandUndefined
}

// Code returns the wire code for the command
func (c Command) Code() uint8 {
	return uint8(c)
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return "Undefined"
}

// Datagram identifies a packet sent from the device to the host.
type Datagram uint8

// Datagram codes
const (
	DatagramSync              Datagram = 0
	DatagramEchoRequest       Datagram = 1
	DatagramEchoResponse      Datagram = 2
	DatagramSceneChange       Datagram = 3
	DatagramAltitude          Datagram = 8
	DatagramApsides           Datagram = 9
	DatagramLiquidFuel        Datagram = 10
	DatagramLiquidFuelStage   Datagram = 11
	DatagramOxidizer          Datagram = 12
	DatagramOxidizerStage     Datagram = 13
	DatagramSolidFuel         Datagram = 14
	DatagramSolidFuelStage    Datagram = 15
	DatagramMonopropellant    Datagram = 16
	DatagramElectricCharge    Datagram = 17
	DatagramEVAPropellant     Datagram = 18
	DatagramOre               Datagram = 19
	DatagramAblator           Datagram = 20
	DatagramAblatorStage      Datagram = 21
	DatagramVelocity          Datagram = 22
	DatagramActionStatus      Datagram = 23
	DatagramApsidesTime       Datagram = 24
	DatagramTargetInfo        Datagram = 25
	DatagramSphereOfInfluence Datagram = 26
	DatagramAirspeed          Datagram = 27

	// DatagramUndefined is returned for codes outside the enumeration
	DatagramUndefined Datagram = 0xFF
)

type datagramInfo struct {
	name  string // printable name
	ident string // stable identifier used by config and HTTP
}

var datagramTable = map[Datagram]datagramInfo{
	DatagramSync:              {"SYNC", "sync"},
	DatagramEchoRequest:       {"ECHO request", "echo_request"},
	DatagramEchoResponse:      {"ECHO response", "echo_response"},
	DatagramSceneChange:       {"Scene change", "scene_change"},
	DatagramAltitude:          {"Altitude", "altitude"},
	DatagramApsides:           {"Apsides", "apsides"},
	DatagramLiquidFuel:        {"Liquid Fuel", "liquid_fuel"},
	DatagramLiquidFuelStage:   {"Liquid Fuel (stage)", "liquid_fuel_stage"},
	DatagramOxidizer:          {"Oxidizer", "oxidizer"},
	DatagramOxidizerStage:     {"Oxidizer (stage)", "oxidizer_stage"},
	DatagramSolidFuel:         {"Solid Fuel", "solid_fuel"},
	DatagramSolidFuelStage:    {"Solid Fuel (stage)", "solid_fuel_stage"},
	DatagramMonopropellant:    {"Monopropellant", "monopropellant"},
	DatagramElectricCharge:    {"Electric Charge", "electric_charge"},
	DatagramEVAPropellant:     {"EVA Monopropellant", "eva_propellant"},
	DatagramOre:               {"Ore", "ore"},
	DatagramAblator:           {"Ablator", "ablator"},
	DatagramAblatorStage:      {"Ablator (stage)", "ablator_stage"},
	DatagramVelocity:          {"Velocity", "velocity"},
	DatagramActionStatus:      {"Actiongroup Status", "action_status"},
	DatagramApsidesTime:       {"Apsides Time", "apsides_time"},
	DatagramTargetInfo:        {"Target", "target_info"},
	DatagramSphereOfInfluence: {"Sphere of Influence", "sphere_of_influence"},
	DatagramAirspeed:          {"Airspeed", "airspeed"},
}

// datagramOrder lists every defined datagram in ascending code order
var datagramOrder = []Datagram{
	DatagramSync, DatagramEchoRequest, DatagramEchoResponse, DatagramSceneChange,
	DatagramAltitude, DatagramApsides,
	DatagramLiquidFuel, DatagramLiquidFuelStage, DatagramOxidizer, DatagramOxidizerStage,
	DatagramSolidFuel, DatagramSolidFuelStage, DatagramMonopropellant, DatagramElectricCharge,
	DatagramEVAPropellant, DatagramOre, DatagramAblator, DatagramAblatorStage,
	DatagramVelocity, DatagramActionStatus, DatagramApsidesTime, DatagramTargetInfo,
	DatagramSphereOfInfluence, DatagramAirspeed,
}

// DatagramFromCode resolves a wire code, falling back to DatagramUndefined.
// Unknown codes are never an error so newer devices do not break the host.
func DatagramFromCode(code uint8) Datagram {
	d := Datagram(code)
	if _, ok := datagramTable[d]; ok {
		return d
	}
	return DatagramUndefined
}

// ParseDatagram looks a datagram up by its identifier ("altitude") or its
// printable name ("Altitude"), case-insensitively.
func ParseDatagram(s string) (Datagram, bool) {
	s = strings.TrimSpace(s)
	for _, d := range datagramOrder {
		info := datagramTable[d]
		if strings.EqualFold(s, info.ident) || strings.EqualFold(s, info.name) {
			return d, true
		}
	}
	return DatagramUndefined, false
}

// Datagrams returns every defined datagram in code order.
func Datagrams() []Datagram {
	out := make([]Datagram, len(datagramOrder))
	copy(out, datagramOrder)
	return out
}

// Code returns the wire code for the datagram
func (d Datagram) Code() uint8 {
	return uint8(d)
}

// Ident returns the snake_case identifier of the datagram
func (d Datagram) Ident() string {
	if info, ok := datagramTable[d]; ok {
		return info.ident
	}
	return "undefined"
}

func (d Datagram) String() string {
	if info, ok := datagramTable[d]; ok {
		return info.name
	}
	return "Undefined"
}

// ActionGroup is a bit in the action status bitmask.
type ActionGroup uint8

// Standard action groups
const (
	ActionStage  ActionGroup = 1
	ActionGear   ActionGroup = 2
	ActionLight  ActionGroup = 4
	ActionRCS    ActionGroup = 8
	ActionSAS    ActionGroup = 16
	ActionBrakes ActionGroup = 32
	ActionAbort  ActionGroup = 64
)

var actionGroupOrder = []ActionGroup{
	ActionStage, ActionGear, ActionLight, ActionRCS, ActionSAS, ActionBrakes, ActionAbort,
}

var actionGroupNames = map[ActionGroup]string{
	ActionStage:  "stage",
	ActionGear:   "gear",
	ActionLight:  "lights",
	ActionRCS:    "rcs",
	ActionSAS:    "sas",
	ActionBrakes: "brakes",
	ActionAbort:  "abort",
}

// ParseActionGroup accepts "SAS", "sas" or "SAS_ACTION" style names.
func ParseActionGroup(s string) (ActionGroup, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimSuffix(s, "_action")
	if s == "light" {
		s = "lights"
	}
	for _, g := range actionGroupOrder {
		if actionGroupNames[g] == s {
			return g, true
		}
	}
	return 0, false
}

func (g ActionGroup) String() string {
	if name, ok := actionGroupNames[g]; ok {
		return name
	}
	return "unknown"
}
