// Package metrics exposes Prometheus collectors for the simpit host.
// Every recorder method is safe to call on a nil *Engine.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "simpit"

// Source exposes engine counters that are owned elsewhere and read at
// scrape time.
type Source interface {
	QueueLen() int
	QueueDropped() uint64
	FramesInvalid() uint64
	BytesDiscarded() uint64
}

// InputSource reports bytes lost before they reached the engine, such as
// serial ring overflow.
type InputSource interface {
	Dropped() uint64
}

// Engine holds the protocol engine and HTTP collectors.
type Engine struct {
	registry prometheus.Registerer
	gatherer prometheus.Gatherer

	packets         *prometheus.CounterVec
	unhandled       *prometheus.CounterVec
	decodeErrors    *prometheus.CounterVec
	commands        *prometheus.CounterVec
	handshakes      prometheus.Counter
	handshakeState  prometheus.Gauge
	handlerDuration prometheus.Histogram

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	mu        sync.RWMutex
	source    Source
	input     InputSource
	watchOnce sync.Once
	inputOnce sync.Once
}

// NewEngine creates the collectors on a private registry
func NewEngine() *Engine {
	reg := prometheus.NewRegistry()
	return NewEngineWithRegistry(reg, reg)
}

// NewEngineWithRegistry registers the collectors with reg; gatherer serves
// the /metrics handler.
func NewEngineWithRegistry(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Engine {
	e := &Engine{
		registry: reg,
		gatherer: gatherer,
		packets: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "packets_total",
				Help:      "Packets assembled from the serial stream, by datagram type.",
			},
			[]string{"type"},
		),
		unhandled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "packets_unhandled_total",
				Help:      "Packets dropped because no handler was registered.",
			},
			[]string{"type"},
		),
		decodeErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "payload_errors_total",
				Help:      "Payloads that failed typed decoding.",
			},
			[]string{"type"},
		),
		commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "commands_total",
				Help:      "Command frames written to the device.",
			},
			[]string{"command", "success"},
		),
		handshakes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "handshake",
				Name:      "attempts_total",
				Help:      "SYN frames sent.",
			},
		),
		handshakeState: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "handshake",
				Name:      "state",
				Help:      "Current handshake state (0 idle, 1 syn sent, 2 ack received, 3 synack sent, 4 established, 5 timeout).",
			},
		),
		handlerDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "handler_duration_seconds",
				Help:      "Time spent in packet handlers.",
				Buckets:   []float64{.00001, .0001, .001, .01, .1, 1},
			},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
	}

	reg.MustRegister(
		e.packets, e.unhandled, e.decodeErrors, e.commands,
		e.handshakes, e.handshakeState, e.handlerDuration,
		e.httpRequests, e.httpDuration,
	)
	return e
}

// Watch points the scrape-time collectors at src. The collectors are
// registered on the first call; later calls replace the source, so an
// Engine can outlive the host it was first given.
func (e *Engine) Watch(src Source) {
	if e == nil || src == nil {
		return
	}
	e.mu.Lock()
	e.source = src
	e.mu.Unlock()

	e.watchOnce.Do(func() {
		e.registry.MustRegister(
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace, Subsystem: "engine", Name: "queue_depth",
				Help: "Packets waiting for dispatch.",
			}, e.read(func(s Source) uint64 { return uint64(s.QueueLen()) })),
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: namespace, Subsystem: "engine", Name: "queue_dropped_total",
				Help: "Packets dropped because the queue was full.",
			}, e.read(Source.QueueDropped)),
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: namespace, Subsystem: "engine", Name: "frames_invalid_total",
				Help: "Frames rejected by the assembler.",
			}, e.read(Source.FramesInvalid)),
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: namespace, Subsystem: "engine", Name: "bytes_discarded_total",
				Help: "Stray bytes skipped while hunting for a frame header.",
			}, e.read(Source.BytesDiscarded)),
		)
	})
}

// WatchInput exports the transport's dropped byte count, replacing any
// previous input source.
func (e *Engine) WatchInput(src InputSource) {
	if e == nil || src == nil {
		return
	}
	e.mu.Lock()
	e.input = src
	e.mu.Unlock()

	e.inputOnce.Do(func() {
		e.registry.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "serial", Name: "bytes_dropped_total",
			Help: "Input bytes lost to serial buffer overflow.",
		}, func() float64 {
			e.mu.RLock()
			defer e.mu.RUnlock()
			return float64(e.input.Dropped())
		}))
	})
}

func (e *Engine) read(fn func(Source) uint64) func() float64 {
	return func() float64 {
		e.mu.RLock()
		defer e.mu.RUnlock()
		return float64(fn(e.source))
	}
}

// PacketReceived counts an assembled packet
func (e *Engine) PacketReceived(datagram string) {
	if e == nil {
		return
	}
	e.packets.WithLabelValues(datagram).Inc()
}

// PacketUnhandled counts a packet with no registered handler
func (e *Engine) PacketUnhandled(datagram string) {
	if e == nil {
		return
	}
	e.unhandled.WithLabelValues(datagram).Inc()
}

// PayloadError counts a payload that failed typed decoding
func (e *Engine) PayloadError(datagram string) {
	if e == nil {
		return
	}
	e.decodeErrors.WithLabelValues(datagram).Inc()
}

// CommandSent counts a command write and whether it completed
func (e *Engine) CommandSent(command string, success bool) {
	if e == nil {
		return
	}
	e.commands.WithLabelValues(command, strconv.FormatBool(success)).Inc()
}

// HandshakeAttempt counts a SYN sent to the device
func (e *Engine) HandshakeAttempt() {
	if e == nil {
		return
	}
	e.handshakes.Inc()
}

// HandshakeState records the current handshake state
func (e *Engine) HandshakeState(state int) {
	if e == nil {
		return
	}
	e.handshakeState.Set(float64(state))
}

// HandlerDuration observes time spent in a packet handler
func (e *Engine) HandlerDuration(d time.Duration) {
	if e == nil {
		return
	}
	e.handlerDuration.Observe(d.Seconds())
}

// RecordHTTPRequest counts and times an HTTP request
func (e *Engine) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if e == nil {
		return
	}
	statusLabel := strconv.Itoa(status)
	e.httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	e.httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

// Handler serves the registry in the Prometheus text format
func (e *Engine) Handler() http.Handler {
	if e == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(e.gatherer, promhttp.HandlerOpts{})
}
