// Package registry implements the process-wide ProviderRegistry: provider
// discovery, lifecycle tracking in response to bus events, and the
// aggregated voices list (spec §4.3).
package registry

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"

	"github.com/voicebus/voicebus/internal/busconn"
	"github.com/voicebus/voicebus/internal/model"
	"github.com/voicebus/voicebus/internal/provider"
	"github.com/voicebus/voicebus/internal/voiceslist"
)

const (
	reenumerateDebounce      = 150 * time.Millisecond
	propertiesRefreshTimeout = 5 * time.Second

	signalActivatableChanged = "org.freedesktop.DBus.ActivatableServicesChanged"
	signalNameOwnerChanged   = "org.freedesktop.DBus.NameOwnerChanged"
	signalPropertiesChanged  = "org.freedesktop.DBus.Properties.PropertiesChanged"
)

// Registry is the live set of discovered providers and their aggregated
// voices. A process holds at most one; see Get.
type Registry struct {
	conn   *busconn.Conn
	voices *voiceslist.Model

	mu        sync.RWMutex
	providers map[string]*provider.Provider
	pending   map[string]bool // names reserved for in-flight construction
	order     []string
	pathToID  map[dbus.ObjectPath]string

	signals <-chan *dbus.Signal

	reenumerateMu    sync.Mutex
	reenumerateTimer *time.Timer

	removedMu     sync.Mutex
	removed       map[int]func(identifier string)
	nextRemovedID int
}

var (
	singletonMu  sync.Mutex
	singleton    *Registry
	singletonErr error
	inflight     chan struct{}
)

// Get returns the process-wide Registry, initializing it on first call.
// Concurrent callers during initialization coalesce onto the same attempt.
// The registry is not reference-counted: once created it is never torn
// down. ctx governs only the initialization itself; the registry's
// background event loop outlives it, since the registry is process-scoped
// and not owned by any one caller.
func Get(ctx context.Context) (*Registry, error) {
	singletonMu.Lock()
	if singleton != nil {
		r := singleton
		singletonMu.Unlock()
		return r, nil
	}
	if inflight != nil {
		ch := inflight
		singletonMu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		singletonMu.Lock()
		r, err := singleton, singletonErr
		singletonMu.Unlock()
		return r, err
	}
	ch := make(chan struct{})
	inflight = ch
	singletonMu.Unlock()

	r, err := newRegistry(ctx)

	singletonMu.Lock()
	singleton, singletonErr = r, err
	inflight = nil
	singletonMu.Unlock()
	close(ch)

	return r, err
}

func newRegistry(ctx context.Context) (*Registry, error) {
	conn, err := busconn.Connect(ctx)
	if err != nil {
		return nil, model.NewSynthesisError(model.ErrorKindBusUnavailable, err)
	}

	signals, err := conn.SubscribeLifecycleSignals(ctx)
	if err != nil {
		_ = conn.Close()
		return nil, model.NewSynthesisError(model.ErrorKindBusUnavailable, err)
	}

	r := &Registry{
		conn:      conn,
		voices:    voiceslist.New(),
		providers: make(map[string]*provider.Provider),
		pending:   make(map[string]bool),
		pathToID:  make(map[dbus.ObjectPath]string),
		signals:   signals,
		removed:   make(map[int]func(identifier string)),
	}

	if err := r.enumerate(ctx); err != nil {
		_ = conn.Close()
		return nil, model.NewSynthesisError(model.ErrorKindBusUnavailable, err)
	}

	go r.run()

	return r, nil
}

// Voices returns the live aggregate voices list, per §4.3's ordering rules.
func (r *Registry) Voices() []model.Voice { return r.voices.Voices() }

// SubscribeVoicesChanged registers fn to run after the aggregate changes.
func (r *Registry) SubscribeVoicesChanged(fn voiceslist.ChangeFunc) (unsubscribe func()) {
	return r.voices.Subscribe(fn)
}

// SubscribeProviderRemoved registers fn to run after a tracked provider is
// removed, named by its well-known bus identifier, whether it vanished
// from the bus or simply dropped out of a re-enumeration. The Speaker uses
// this to fail an in-flight entry whose provider died mid-synthesis with
// ErrorKindProviderUnexpectedlyDied (spec §4.2, §7). The returned function
// unsubscribes it.
func (r *Registry) SubscribeProviderRemoved(fn func(identifier string)) (unsubscribe func()) {
	r.removedMu.Lock()
	id := r.nextRemovedID
	r.nextRemovedID++
	r.removed[id] = fn
	r.removedMu.Unlock()

	return func() {
		r.removedMu.Lock()
		delete(r.removed, id)
		r.removedMu.Unlock()
	}
}

func (r *Registry) notifyProviderRemoved(identifier string) {
	r.removedMu.Lock()
	fns := make([]func(string), 0, len(r.removed))
	for _, fn := range r.removed {
		fns = append(fns, fn)
	}
	r.removedMu.Unlock()

	for _, fn := range fns {
		fn(identifier)
	}
}

// Providers returns a snapshot of tracked providers, ordered by identifier.
func (r *Registry) Providers() []*provider.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*provider.Provider, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.providers[id])
	}
	return out
}

// GetProvider looks up a tracked provider by its bus-name identifier.
func (r *Registry) GetProvider(identifier string) (*provider.Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[identifier]
	return p, ok
}

func (r *Registry) run() {
	for sig := range r.signals {
		r.handleSignal(sig)
	}
}

func (r *Registry) handleSignal(sig *dbus.Signal) {
	switch sig.Name {
	case signalActivatableChanged:
		r.scheduleReenumerate()
	case signalNameOwnerChanged:
		r.handleNameOwnerChanged(sig)
	case signalPropertiesChanged:
		r.handlePropertiesChanged(sig)
	}
}

func (r *Registry) scheduleReenumerate() {
	r.reenumerateMu.Lock()
	defer r.reenumerateMu.Unlock()
	if r.reenumerateTimer != nil {
		r.reenumerateTimer.Stop()
	}
	r.reenumerateTimer = time.AfterFunc(reenumerateDebounce, func() {
		ctx, cancel := context.WithTimeout(context.Background(), propertiesRefreshTimeout)
		defer cancel()
		if err := r.enumerate(ctx); err != nil {
			logrus.WithError(err).Warn("registry: re-enumeration failed")
		}
	})
}

func (r *Registry) handleNameOwnerChanged(sig *dbus.Signal) {
	if len(sig.Body) != 3 {
		return
	}
	name, ok := sig.Body[0].(string)
	if !ok || !strings.HasSuffix(name, model.ProviderSuffix) {
		return
	}
	newOwner, _ := sig.Body[2].(string)

	if newOwner == "" {
		r.mu.RLock()
		p, tracked := r.providers[name]
		r.mu.RUnlock()
		if !tracked || p.IsActivatable() {
			return
		}
		r.removeProvider(name)
		logrus.WithField("provider", name).Info("registry: provider vanished, removed")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), propertiesRefreshTimeout)
	defer cancel()
	isActivatable := r.isActivatable(ctx, name)
	r.constructProvider(ctx, name, isActivatable)
}

func (r *Registry) handlePropertiesChanged(sig *dbus.Signal) {
	if len(sig.Body) < 1 {
		return
	}
	iface, ok := sig.Body[0].(string)
	if !ok || iface != provider.ProviderInterface {
		return
	}

	r.mu.RLock()
	name, ok := r.pathToID[sig.Path]
	var p *provider.Provider
	if ok {
		p = r.providers[name]
	}
	r.mu.RUnlock()
	if !ok || p == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), propertiesRefreshTimeout)
	defer cancel()
	if err := p.RefreshVoices(ctx); err != nil {
		logrus.WithError(err).WithField("provider", name).Warn("registry: refresh voices failed")
		return
	}
	r.voices.SetProviderVoices(name, p.Voices())
}

func (r *Registry) isActivatable(ctx context.Context, name string) bool {
	names, err := r.conn.ListActivatableNames(ctx)
	if err != nil {
		return false
	}
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

// enumerate implements spec §4.3 step 2/3 and the "on ActivatableServicesChanged"
// running behavior: re-list, diff, add/remove.
func (r *Registry) enumerate(ctx context.Context) error {
	if runningSandboxed() {
		names, err := portalProviderNames(ctx, r.conn)
		if err == nil {
			r.applyEnumeration(ctx, names, names)
			return nil
		}
		logrus.WithError(err).Warn("registry: portal enumeration failed, falling back to direct bus listing")
	}

	activatable, err := r.conn.ListActivatableNames(ctx)
	if err != nil {
		return err
	}
	running, err := r.conn.ListNames(ctx)
	if err != nil {
		return err
	}
	r.applyEnumeration(ctx, activatable, running)
	return nil
}

func (r *Registry) applyEnumeration(ctx context.Context, activatable, running []string) {
	activatableNames := filterProviderSuffix(activatable)
	activatableSet := make(map[string]bool, len(activatableNames))
	for _, n := range activatableNames {
		activatableSet[n] = true
	}

	seen := make(map[string]bool, len(activatableNames)+len(running))
	for _, n := range activatableNames {
		seen[n] = true
		r.syncActivatable(n)
		r.constructProvider(ctx, n, true)
	}
	for _, n := range filterProviderSuffix(running) {
		seen[n] = true
		if activatableSet[n] {
			r.syncActivatable(n)
		}
		r.constructProvider(ctx, n, activatableSet[n])
	}

	r.removeProvidersNotIn(seen)
}

// syncActivatable upgrades an already-tracked provider to is_activatable
// once it shows up in ListActivatableNames, per spec §4.3: "a Provider
// appearing in both activatable and running lists is represented once,
// with is_activatable=true" — regardless of which list it was first
// constructed from. It never downgrades.
func (r *Registry) syncActivatable(name string) {
	r.mu.RLock()
	p, tracked := r.providers[name]
	r.mu.RUnlock()
	if !tracked {
		return
	}
	p.MarkActivatable()
}

// reserve atomically claims name for construction, returning false if it
// is already tracked or another goroutine is already constructing it.
// Both applyEnumeration's debounced re-enumeration and
// handleNameOwnerChanged call constructProvider concurrently for the same
// new name; without this, both could pass a "tracked?" check before
// either finishes provider.New, double-constructing the provider and
// double-subscribing its PropertiesChanged match rule.
func (r *Registry) reserve(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, tracked := r.providers[name]; tracked {
		return false
	}
	if r.pending[name] {
		return false
	}
	r.pending[name] = true
	return true
}

func (r *Registry) constructProvider(ctx context.Context, name string, isActivatable bool) {
	if !r.reserve(name) {
		return
	}

	p, err := provider.New(ctx, r.conn, name, isActivatable, func(delta provider.VoicesDelta) {
		r.mu.RLock()
		live, ok := r.providers[name]
		r.mu.RUnlock()
		if !ok {
			return
		}
		r.voices.SetProviderVoices(name, live.Voices())
	})
	if err != nil {
		r.mu.Lock()
		delete(r.pending, name)
		r.mu.Unlock()
		logrus.WithError(err).WithField("provider", name).Warn("registry: skipping provider, construction failed")
		return
	}

	r.mu.Lock()
	r.providers[name] = p
	delete(r.pending, name)
	r.order = insertSorted(r.order, name)
	r.pathToID[busconn.ObjectPathFor(name)] = name
	r.mu.Unlock()

	r.voices.SetProviderVoices(name, p.Voices())

	if err := r.conn.SubscribePropertiesChanged(ctx, name); err != nil {
		logrus.WithError(err).WithField("provider", name).Warn("registry: could not subscribe to voice changes")
	}
}

func (r *Registry) removeProvider(name string) {
	r.mu.Lock()
	delete(r.providers, name)
	r.order = removeSorted(r.order, name)
	delete(r.pathToID, busconn.ObjectPathFor(name))
	r.mu.Unlock()
	r.voices.RemoveProvider(name)
	r.notifyProviderRemoved(name)
}

func (r *Registry) removeProvidersNotIn(seen map[string]bool) {
	r.mu.RLock()
	var stale []string
	for id := range r.providers {
		if !seen[id] {
			stale = append(stale, id)
		}
	}
	r.mu.RUnlock()

	for _, id := range stale {
		r.removeProvider(id)
		logrus.WithField("provider", id).Info("registry: provider no longer listed, removed")
	}
}

func filterProviderSuffix(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if strings.HasSuffix(n, model.ProviderSuffix) {
			out = append(out, n)
		}
	}
	return out
}

func insertSorted(order []string, id string) []string {
	pos := sort.SearchStrings(order, id)
	if pos < len(order) && order[pos] == id {
		return order
	}
	order = append(order, "")
	copy(order[pos+1:], order[pos:])
	order[pos] = id
	return order
}

func removeSorted(order []string, id string) []string {
	pos := sort.SearchStrings(order, id)
	if pos >= len(order) || order[pos] != id {
		return order
	}
	return append(order[:pos], order[pos+1:]...)
}
