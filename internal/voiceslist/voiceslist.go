// Package voiceslist implements the flattened, live aggregate view over
// every discovered provider's voices (§3 "aggregate voices list", §4.3
// ordering rules).
package voiceslist

import (
	"sort"
	"sync"

	"github.com/voicebus/voicebus/internal/model"
)

// ChangeFunc is called after the aggregate has been updated, so observers
// reading Voices() see state consistent with the change being announced.
type ChangeFunc func()

// Model is the aggregate voices list: a concatenation of each known
// provider's voices, providers ordered by identifier, preserving each
// provider's own internal order (§4.3 "Ordering and tie-breaks").
//
// Model is safe for concurrent use.
type Model struct {
	mu         sync.RWMutex
	byProvider map[string][]model.Voice
	order      []string // provider identifiers, kept sorted

	listenersMu sync.Mutex
	listeners   map[int]ChangeFunc
	nextID      int
}

// New returns an empty Model.
func New() *Model {
	return &Model{
		byProvider: make(map[string][]model.Voice),
		listeners:  make(map[int]ChangeFunc),
	}
}

// SetProviderVoices replaces the voice list recorded for providerID,
// registering the provider in the aggregate's order if it is new.
func (m *Model) SetProviderVoices(providerID string, voices []model.Voice) {
	m.mu.Lock()
	if _, known := m.byProvider[providerID]; !known {
		m.insertProviderLocked(providerID)
	}
	m.byProvider[providerID] = append([]model.Voice(nil), voices...)
	m.mu.Unlock()
	m.notify()
}

// RemoveProvider drops providerID (and its voices) from the aggregate.
func (m *Model) RemoveProvider(providerID string) {
	m.mu.Lock()
	if _, known := m.byProvider[providerID]; !known {
		m.mu.Unlock()
		return
	}
	delete(m.byProvider, providerID)
	for i, id := range m.order {
		if id == providerID {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.mu.Unlock()
	m.notify()
}

func (m *Model) insertProviderLocked(providerID string) {
	pos := sort.SearchStrings(m.order, providerID)
	m.order = append(m.order, "")
	copy(m.order[pos+1:], m.order[pos:])
	m.order[pos] = providerID
}

// Voices returns the current flattened aggregate, in provider-identifier
// order, preserving each provider's internal voice order.
func (m *Model) Voices() []model.Voice {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := 0
	for _, id := range m.order {
		total += len(m.byProvider[id])
	}
	out := make([]model.Voice, 0, total)
	for _, id := range m.order {
		out = append(out, m.byProvider[id]...)
	}
	return out
}

// Subscribe registers fn to be called after every aggregate change. The
// returned function unsubscribes it.
func (m *Model) Subscribe(fn ChangeFunc) (unsubscribe func()) {
	m.listenersMu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.listenersMu.Unlock()

	return func() {
		m.listenersMu.Lock()
		delete(m.listeners, id)
		m.listenersMu.Unlock()
	}
}

func (m *Model) notify() {
	m.listenersMu.Lock()
	fns := make([]ChangeFunc, 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.listenersMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
