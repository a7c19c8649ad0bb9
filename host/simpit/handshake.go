package simpit

import (
	"context"

	"simpit/protocol"
)

// State is the handshake progress of a session
type State uint32

const (
	StateIdle State = iota
	StateSynSent
	StateAckReceived
	StateSynAckSent
	StateEstablished
	StateTimeout
)

var stateNames = [...]string{
	StateIdle:        "idle",
	StateSynSent:     "syn_sent",
	StateAckReceived: "ack_received",
	StateSynAckSent:  "synack_sent",
	StateEstablished: "established",
	StateTimeout:     "timeout",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// State returns the current handshake state
func (h *Host) State() State {
	return State(h.state.Load())
}

func (h *Host) setState(s State) {
	h.state.Store(uint32(s))
	h.metrics.HandshakeState(int(s))
}

// handshakePayload is {marker, version bytes, 0x00}
func handshakePayload(marker byte) []byte {
	payload := make([]byte, 0, len(protocol.Version)+2)
	payload = append(payload, marker)
	payload = append(payload, protocol.Version...)
	return append(payload, 0x00)
}

// Handshake sends SYN and waits for the device's ACK, resending SYN every
// retry window until one arrives. On ACK it replies with a single SYNACK,
// starts the dispatch loop and returns true. It returns false only when
// ctx is cancelled. The assembler must be running so that replies reach
// the queue.
func (h *Host) Handshake(ctx context.Context) bool {
	if h.State() == StateEstablished {
		return true
	}

	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			return false
		}

		h.log.Info().Int("attempt", attempt).Msg("Initiating handshake")
		if err := h.send(protocol.CommandSync, handshakePayload(protocol.HandshakeSyn)); err != nil {
			h.log.Warn().Err(err).Msg("SYN write failed")
		}
		h.metrics.HandshakeAttempt()
		h.setState(StateSynSent)

		if h.awaitAck(ctx) {
			break
		}
		if ctx.Err() != nil {
			h.setState(StateIdle)
			return false
		}

		h.setState(StateTimeout)
		h.log.Info().Dur("window", h.cfg.HandshakeRetry).Msg("No ACK received, retrying")
	}

	h.setState(StateAckReceived)
	h.log.Info().Msg("ACK received, sending SYNACK")
	if err := h.send(protocol.CommandSync, handshakePayload(protocol.HandshakeSynAck)); err != nil {
		h.log.Warn().Err(err).Msg("SYNACK write failed")
	}
	h.setState(StateSynAckSent)

	h.setState(StateEstablished)
	h.log.Info().Msg("Handshake complete")
	h.startDispatch(ctx)
	return true
}

// awaitAck consumes packets until a SYNC datagram carrying the ACK marker
// arrives or the retry window closes. Everything else is discarded.
func (h *Host) awaitAck(ctx context.Context) bool {
	wctx, cancel := context.WithTimeout(ctx, h.cfg.HandshakeRetry)
	defer cancel()

	for {
		p, err := h.queue.Pop(wctx)
		if err != nil {
			return false
		}
		if p.Type() != protocol.DatagramSync {
			h.log.Debug().Str("type", p.Type().String()).Msg("Discarding packet during handshake")
			continue
		}
		payload := p.Payload()
		if len(payload) > 0 && payload[0] == protocol.HandshakeAck {
			return true
		}
		h.log.Debug().Str("payload", protocol.HexString(payload)).Msg("Ignoring SYNC without ACK marker")
	}
}
