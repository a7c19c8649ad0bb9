package main

import (
	"sync"

	"simpit/host/serial"
	"simpit/protocol"
)

// simulatedDevice answers the host over a loopback transport: it ACKs the
// handshake, echoes echo requests, reports a few channels on subscription
// and tracks standard action group commands.
type simulatedDevice struct {
	*serial.Loopback

	mu      sync.Mutex
	actions protocol.ActionGroups
}

func newSimulatedDevice() *simulatedDevice {
	d := &simulatedDevice{Loopback: serial.NewLoopback()}
	d.OnWrite(d.handle)
	return d
}

func (d *simulatedDevice) reply(t protocol.Datagram, p protocol.Payload) {
	payload, err := p.MarshalBinary()
	if err != nil {
		return
	}
	d.replyRaw(t, payload)
}

func (d *simulatedDevice) replyRaw(t protocol.Datagram, payload []byte) {
	if frame, err := protocol.Encode(t, payload); err == nil {
		d.Inject(frame)
	}
}

func (d *simulatedDevice) handle(frame []byte) {
	p, err := protocol.Decode(frame)
	if err != nil {
		return
	}
	payload := p.Payload()

	switch protocol.CommandFromCode(p.Code()) {
	case protocol.CommandSync:
		if len(payload) > 0 && payload[0] == protocol.HandshakeSyn {
			ack := append([]byte{protocol.HandshakeAck}, protocol.Version...)
			d.replyRaw(protocol.DatagramSync, append(ack, 0x00))
		}

	case protocol.CommandEchoRequest:
		d.replyRaw(protocol.DatagramEchoResponse, payload)

	case protocol.CommandRegister:
		if len(payload) > 0 {
			d.report(protocol.DatagramFromCode(payload[0]))
		}

	case protocol.CommandActivate, protocol.CommandDeactivate, protocol.CommandToggle:
		if len(payload) == 0 {
			return
		}
		d.mu.Lock()
		switch protocol.CommandFromCode(p.Code()) {
		case protocol.CommandActivate:
			d.actions |= protocol.ActionGroups(payload[0])
		case protocol.CommandDeactivate:
			d.actions &^= protocol.ActionGroups(payload[0])
		default:
			d.actions ^= protocol.ActionGroups(payload[0])
		}
		actions := d.actions
		d.mu.Unlock()
		d.reply(protocol.DatagramActionStatus, actions)
	}
}

func (d *simulatedDevice) report(t protocol.Datagram) {
	switch t {
	case protocol.DatagramAltitude:
		d.reply(t, protocol.Altitude{SeaLevel: 75000, Surface: 74250})
	case protocol.DatagramApsides:
		d.reply(t, protocol.Apsides{Periapsis: 72000, Apoapsis: 80000})
	case protocol.DatagramLiquidFuel:
		d.reply(t, protocol.Resource{Total: 360, Available: 180})
	case protocol.DatagramElectricCharge:
		d.reply(t, protocol.Resource{Total: 150, Available: 150})
	case protocol.DatagramActionStatus:
		d.mu.Lock()
		actions := d.actions
		d.mu.Unlock()
		d.reply(t, actions)
	case protocol.DatagramSphereOfInfluence:
		d.reply(t, protocol.SphereOfInfluence("Kerbin"))
	}
}
