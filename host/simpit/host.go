// Package simpit is the host side of a KerbalSimpit session: it performs the
// handshake, dispatches incoming datagrams to registered handlers and sends
// commands to the device.
package simpit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"simpit/host/metrics"
	"simpit/host/serial"
	"simpit/protocol"
)

const (
	DefaultHandshakeRetry    = 5 * time.Second
	DefaultHeartbeatInterval = 60 * time.Second
	DefaultEchoMessage       = "rpi-simpit heartbeat"
)

// Config holds the engine settings
type Config struct {
	QueueSize         int
	PollInterval      time.Duration
	HandshakeRetry    time.Duration
	HeartbeatInterval time.Duration // zero disables the echo heartbeat
	EchoMessage       string

	// Channels subscribed after the handshake. Nil subscribes to every
	// defined datagram; an empty non-nil slice subscribes to none.
	Channels []protocol.Datagram

	Logger  zerolog.Logger
	Metrics *metrics.Engine
}

// DefaultConfig returns the stock engine settings
func DefaultConfig() Config {
	return Config{
		QueueSize:         protocol.DefaultQueueSize,
		PollInterval:      protocol.DefaultPollInterval,
		HandshakeRetry:    DefaultHandshakeRetry,
		HeartbeatInterval: DefaultHeartbeatInterval,
		EchoMessage:       DefaultEchoMessage,
		Logger:            zerolog.Nop(),
	}
}

// Host owns one device session
type Host struct {
	cfg       Config
	log       zerolog.Logger
	metrics   *metrics.Engine
	transport serial.Transport

	queue     *protocol.PacketQueue
	assembler *protocol.Assembler
	registry  *Registry

	state atomic.Uint32

	// Serialises frame writes so concurrent senders never interleave
	writeMutex sync.Mutex

	dispatchOnce sync.Once
	dispatchDone chan struct{}
	dispatching  atomic.Bool
}

// New creates a host talking over t
func New(t serial.Transport, cfg Config) *Host {
	def := DefaultConfig()
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.HandshakeRetry <= 0 {
		cfg.HandshakeRetry = def.HandshakeRetry
	}
	if cfg.EchoMessage == "" {
		cfg.EchoMessage = def.EchoMessage
	}

	h := &Host{
		cfg:          cfg,
		log:          cfg.Logger.With().Str("component", "simpit").Logger(),
		metrics:      cfg.Metrics,
		transport:    t,
		queue:        protocol.NewPacketQueue(cfg.QueueSize),
		registry:     NewRegistry(),
		dispatchDone: make(chan struct{}),
	}
	h.assembler = protocol.NewAssembler(
		protocol.WithPollInterval(cfg.PollInterval),
		protocol.WithErrorHandler(func(err error) {
			h.log.Debug().Err(err).Msg("Discarding frame")
		}),
		protocol.WithTraceHandler(func(b []byte) {
			h.log.Trace().Str("bytes", protocol.HexString(b)).Msg("Serial input")
		}),
	)
	h.setState(StateIdle)
	h.metrics.Watch(h)
	return h
}

// Registry returns the dispatch registry
func (h *Host) Registry() *Registry {
	return h.registry
}

// Register installs a handler for d. See Registry.Register.
func (h *Host) Register(d protocol.Datagram, decoder protocol.Decoder, handler Handler) {
	h.log.Info().Str("type", d.String()).Msg("Registering handler")
	h.registry.Register(d, decoder, handler)
}

// Unregister removes the handler for d
func (h *Host) Unregister(d protocol.Datagram) bool {
	return h.registry.Unregister(d)
}

// Dispatching reports whether the dispatch loop has been started
func (h *Host) Dispatching() bool {
	return h.dispatching.Load()
}

// Run starts the assembler, performs the handshake, subscribes to the
// configured channels and then keeps the echo heartbeat going until ctx is
// cancelled or the transport reaches end of stream.
func (h *Host) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := h.assembler.Run(gctx, h.transport, h.queue)
		if err != nil && gctx.Err() == nil {
			return fmt.Errorf("assembler: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return h.session(gctx)
	})

	err := g.Wait()
	h.waitDispatch()
	if ctx.Err() != nil && errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (h *Host) session(ctx context.Context) error {
	if !h.Handshake(ctx) {
		return nil
	}

	if h.cfg.Channels == nil {
		if err := h.EnableAllChannels(); err != nil {
			h.log.Warn().Err(err).Msg("Channel subscription failed")
		}
	}
	for _, d := range h.cfg.Channels {
		if err := h.EnableChannel(d); err != nil {
			h.log.Warn().Err(err).Str("type", d.String()).Msg("Channel subscription failed")
		}
	}

	if h.cfg.HeartbeatInterval <= 0 {
		<-ctx.Done()
		return nil
	}
	return h.heartbeat(ctx)
}

// heartbeat sends an echo request immediately and then on every tick
func (h *Host) heartbeat(ctx context.Context) error {
	h.log.Info().Dur("interval", h.cfg.HeartbeatInterval).Msg("Starting echo heartbeat")

	ticker := time.NewTicker(h.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		if err := h.SendEcho(h.cfg.EchoMessage); err != nil {
			h.log.Warn().Err(err).Msg("Echo heartbeat failed")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// startDispatch launches the dispatch loop. Only the first call has any
// effect.
func (h *Host) startDispatch(ctx context.Context) {
	h.dispatchOnce.Do(func() {
		h.dispatching.Store(true)
		h.log.Info().Msg("Starting dispatch loop")
		go func() {
			defer close(h.dispatchDone)
			h.dispatchLoop(ctx)
		}()
	})
}

func (h *Host) waitDispatch() {
	if h.Dispatching() {
		<-h.dispatchDone
	}
}

func (h *Host) dispatchLoop(ctx context.Context) {
	for {
		p, err := h.queue.Pop(ctx)
		if err != nil {
			return
		}
		h.dispatch(p)
	}
}

func (h *Host) dispatch(p protocol.Packet) {
	d := p.Type()
	h.metrics.PacketReceived(d.String())

	handler, decoder, ok := h.registry.Lookup(d)
	if !ok {
		h.metrics.PacketUnhandled(d.String())
		h.log.Debug().Str("type", d.String()).Uint8("code", p.Code()).Msg("No handler for packet")
		return
	}

	start := time.Now()
	handler(d, p.Payload(), decoder)
	h.metrics.HandlerDuration(time.Since(start))
}

// QueueLen implements metrics.Source
func (h *Host) QueueLen() int { return h.queue.Len() }

// QueueDropped implements metrics.Source
func (h *Host) QueueDropped() uint64 { return h.queue.Dropped() }

// FramesInvalid implements metrics.Source
func (h *Host) FramesInvalid() uint64 { return h.assembler.Invalid() }

// BytesDiscarded implements metrics.Source
func (h *Host) BytesDiscarded() uint64 { return h.assembler.Discarded() }
