// Package telemetry keeps the last value of every datagram the device
// reports and fans changes out to subscribers.
package telemetry

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"simpit/host/simpit"
	"simpit/protocol"
)

// Update is one change to the cache
type Update struct {
	Type    protocol.Datagram
	Payload protocol.Payload
	Time    time.Time
}

// Entry is a cached value as exposed over JSON
type Entry struct {
	Type    string           `json:"type"`
	Name    string           `json:"name"`
	Value   protocol.Payload `json:"value"`
	Text    string           `json:"text"`
	Updated time.Time        `json:"updated"`
}

// Entry converts u to its JSON form
func (u Update) Entry() Entry {
	return Entry{
		Type:    u.Type.Ident(),
		Name:    u.Type.String(),
		Value:   u.Payload,
		Text:    u.Payload.String(),
		Updated: u.Time,
	}
}

// Registrar is where the cache installs its handlers
type Registrar interface {
	Register(d protocol.Datagram, decoder protocol.Decoder, handler simpit.Handler)
}

// Recorder counts payloads the cache could not decode
type Recorder interface {
	PayloadError(datagram string)
}

// CacheOption configures a Cache
type CacheOption func(*Cache)

// WithRecorder reports decode failures to r
func WithRecorder(r Recorder) CacheOption {
	return func(c *Cache) {
		if r != nil {
			c.recorder = r
		}
	}
}

// Cache holds the last decoded payload per datagram type
type Cache struct {
	log      zerolog.Logger
	recorder Recorder

	mu     sync.RWMutex
	values map[protocol.Datagram]Update

	subMu  sync.Mutex
	subs   map[uint64]chan Update
	nextID uint64

	lastEcho atomic.Value // string
	now      func() time.Time
}

// NewCache creates an empty cache
func NewCache(logger zerolog.Logger, opts ...CacheOption) *Cache {
	c := &Cache{
		log:    logger.With().Str("component", "telemetry").Logger(),
		values: make(map[protocol.Datagram]Update),
		subs:   make(map[uint64]chan Update),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Attach registers a caching handler for every datagram with a typed
// payload, plus an echo response logger.
func (c *Cache) Attach(r Registrar) {
	for _, d := range protocol.Datagrams() {
		decoder, ok := protocol.DecoderFor(d)
		if !ok {
			continue
		}
		r.Register(d, decoder, c.handle)
	}
	r.Register(protocol.DatagramEchoResponse, nil, c.handleEcho)
}

func (c *Cache) handle(d protocol.Datagram, payload []byte, decode protocol.Decoder) {
	if decode == nil {
		return
	}
	p, err := decode(payload)
	if err != nil {
		c.log.Warn().Err(err).Str("type", d.String()).Str("payload", protocol.HexString(payload)).Msg("Dropping malformed payload")
		if c.recorder != nil {
			c.recorder.PayloadError(d.String())
		}
		return
	}
	if c.Set(d, p) {
		c.log.Info().Str("type", d.String()).Msg(p.String())
	}
}

func (c *Cache) handleEcho(d protocol.Datagram, payload []byte, _ protocol.Decoder) {
	text := strings.TrimSpace(strings.TrimRight(string(payload), "\x00"))
	c.lastEcho.Store(text)
	c.log.Debug().Str("type", d.String()).Msg(text)
}

// LastEcho returns the text of the most recent echo response
func (c *Cache) LastEcho() string {
	s, _ := c.lastEcho.Load().(string)
	return s
}

// Set stores p for d when it differs from the cached value, reporting
// whether anything changed. Changes are published to subscribers.
func (c *Cache) Set(d protocol.Datagram, p protocol.Payload) bool {
	c.mu.Lock()
	if prev, ok := c.values[d]; ok && prev.Payload.Equal(p) {
		c.mu.Unlock()
		return false
	}
	u := Update{Type: d, Payload: p, Time: c.now()}
	c.values[d] = u
	c.mu.Unlock()

	c.publish(u)
	return true
}

// Get returns the cached value for d
func (c *Cache) Get(d protocol.Datagram) (Update, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	u, ok := c.values[d]
	return u, ok
}

// Updates returns every cached value in code order
func (c *Cache) Updates() []Update {
	c.mu.RLock()
	out := make([]Update, 0, len(c.values))
	for _, u := range c.values {
		out = append(out, u)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

// Snapshot returns the cache keyed by datagram identifier
func (c *Cache) Snapshot() map[string]Entry {
	updates := c.Updates()
	out := make(map[string]Entry, len(updates))
	for _, u := range updates {
		out[u.Type.Ident()] = u.Entry()
	}
	return out
}

// Summary renders one line per cached value
func (c *Cache) Summary() string {
	var b strings.Builder
	b.WriteString("Status:\n")
	for _, u := range c.Updates() {
		b.WriteString(u.Type.String())
		b.WriteString(" - ")
		b.WriteString(u.Payload.String())
		b.WriteString("\n")
	}
	return b.String()
}

// Subscribe returns a channel receiving every subsequent change and a
// function that cancels the subscription. A subscriber that falls more
// than buffer updates behind misses updates rather than stalling dispatch.
func (c *Cache) Subscribe(buffer int) (<-chan Update, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Update, buffer)

	c.subMu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = ch
	c.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.subMu.Lock()
			delete(c.subs, id)
			c.subMu.Unlock()
			close(ch)
		})
	}
}

// Subscribers returns the number of active subscriptions
func (c *Cache) Subscribers() int {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	return len(c.subs)
}

func (c *Cache) publish(u Update) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- u:
		default:
		}
	}
}
