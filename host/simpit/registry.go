package simpit

import (
	"sort"
	"sync"

	"simpit/protocol"
)

// Handler is called on the dispatch goroutine for every packet of the type
// it was registered for. decode is the decoder registered alongside it and
// may be nil for types without a typed payload.
type Handler func(d protocol.Datagram, payload []byte, decode protocol.Decoder)

type registration struct {
	decoder protocol.Decoder
	handler Handler
}

// Registry maps datagram types to handlers. At most one handler is held per
// type; registering again replaces the previous one.
type Registry struct {
	mu      sync.RWMutex
	entries map[protocol.Datagram]registration
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[protocol.Datagram]registration),
	}
}

// Register installs handler for d. A nil decoder falls back to the
// protocol's decoder for d; a nil handler removes any registration.
func (r *Registry) Register(d protocol.Datagram, decoder protocol.Decoder, handler Handler) {
	if handler == nil {
		r.Unregister(d)
		return
	}
	if decoder == nil {
		decoder, _ = protocol.DecoderFor(d)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[d] = registration{decoder: decoder, handler: handler}
}

// Unregister removes the handler for d, reporting whether one existed
func (r *Registry) Unregister(d protocol.Datagram) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[d]
	delete(r.entries, d)
	return ok
}

// Lookup returns the handler and decoder registered for d
func (r *Registry) Lookup(d protocol.Datagram) (Handler, protocol.Decoder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.entries[d]
	return reg.handler, reg.decoder, ok
}

// Types returns the registered datagram types in code order
func (r *Registry) Types() []protocol.Datagram {
	r.mu.RLock()
	types := make([]protocol.Datagram, 0, len(r.entries))
	for d := range r.entries {
		types = append(types, d)
	}
	r.mu.RUnlock()

	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Len returns the number of registered handlers
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
