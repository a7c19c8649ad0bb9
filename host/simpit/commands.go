package simpit

import (
	"errors"
	"fmt"

	"simpit/protocol"
)

var (
	// ErrWriteIncomplete is returned when the transport accepted fewer bytes
	// than a full frame. Sends are never retried.
	ErrWriteIncomplete = errors.New("simpit: incomplete write")

	// ErrInvalidActionGroup is returned for custom action group indices
	// outside MinCustomActionGroup..MaxCustomActionGroup.
	ErrInvalidActionGroup = errors.New("simpit: invalid action group")
)

// Custom action groups are numbered 1 to 10
const (
	MinCustomActionGroup = 1
	MaxCustomActionGroup = 10
)

// send encodes and writes one frame
func (h *Host) send(cmd protocol.Command, payload []byte) error {
	frame, err := protocol.Encode(cmd, payload)
	if err != nil {
		h.metrics.CommandSent(cmd.String(), false)
		return fmt.Errorf("encode %s: %w", cmd, err)
	}

	h.log.Debug().Str("command", cmd.String()).Str("frame", protocol.HexString(frame)).Msg("Sending command")

	h.writeMutex.Lock()
	n, err := h.transport.Write(frame)
	h.writeMutex.Unlock()

	if err == nil && n != len(frame) {
		err = fmt.Errorf("%w: %d/%d bytes", ErrWriteIncomplete, n, len(frame))
	} else if err != nil {
		err = fmt.Errorf("write %s: %w", cmd, err)
	}
	h.metrics.CommandSent(cmd.String(), err == nil)
	if err != nil {
		return err
	}

	h.log.Trace().Int("bytes", n).Msg("Wrote frame")
	return nil
}

func (h *Host) sendPayload(cmd protocol.Command, p protocol.Payload) error {
	payload, err := p.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encode %s: %w", cmd, err)
	}
	return h.send(cmd, payload)
}

// SendEcho sends an echo request; the device answers with an echo response
// carrying the same text.
func (h *Host) SendEcho(message string) error {
	return h.send(protocol.CommandEchoRequest, []byte(message))
}

// EnableChannel subscribes to datagrams of type d
func (h *Host) EnableChannel(d protocol.Datagram) error {
	return h.send(protocol.CommandRegister, []byte{d.Code()})
}

// DisableChannel unsubscribes from datagrams of type d
func (h *Host) DisableChannel(d protocol.Datagram) error {
	return h.send(protocol.CommandDeregister, []byte{d.Code()})
}

// EnableAllChannels subscribes to every defined datagram, continuing past
// failures and returning them joined.
func (h *Host) EnableAllChannels() error {
	var errs []error
	for _, d := range protocol.Datagrams() {
		if err := h.EnableChannel(d); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ActivateStandardActionGroup turns on the groups set in g
func (h *Host) ActivateStandardActionGroup(g protocol.ActionGroup) error {
	return h.send(protocol.CommandActivate, []byte{uint8(g)})
}

// DeactivateStandardActionGroup turns off the groups set in g
func (h *Host) DeactivateStandardActionGroup(g protocol.ActionGroup) error {
	return h.send(protocol.CommandDeactivate, []byte{uint8(g)})
}

// ToggleStandardActionGroup flips the groups set in g
func (h *Host) ToggleStandardActionGroup(g protocol.ActionGroup) error {
	return h.send(protocol.CommandToggle, []byte{uint8(g)})
}

// ActivateCustomActionGroup turns on custom group index (1-10)
func (h *Host) ActivateCustomActionGroup(index int) error {
	return h.sendCustom(protocol.CommandCustomActivate, index)
}

// DeactivateCustomActionGroup turns off custom group index
func (h *Host) DeactivateCustomActionGroup(index int) error {
	return h.sendCustom(protocol.CommandCustomDeactivate, index)
}

// ToggleCustomActionGroup flips custom group index
func (h *Host) ToggleCustomActionGroup(index int) error {
	return h.sendCustom(protocol.CommandCustomToggle, index)
}

func (h *Host) sendCustom(cmd protocol.Command, index int) error {
	if index < MinCustomActionGroup || index > MaxCustomActionGroup {
		return fmt.Errorf("%w: custom group %d", ErrInvalidActionGroup, index)
	}
	return h.send(cmd, []byte{uint8(index)})
}

// SendRotation sends a rotation control frame
func (h *Host) SendRotation(r protocol.Rotation) error {
	return h.sendPayload(protocol.CommandRotation, r)
}

// SendTranslation sends a translation control frame
func (h *Host) SendTranslation(t protocol.Translation) error {
	return h.sendPayload(protocol.CommandTranslation, t)
}

// SendWheel sends a wheel control frame
func (h *Host) SendWheel(w protocol.Wheel) error {
	return h.sendPayload(protocol.CommandWheel, w)
}

// SendThrottle sends a throttle control frame
func (h *Host) SendThrottle(t protocol.Throttle) error {
	return h.sendPayload(protocol.CommandThrottle, t)
}
