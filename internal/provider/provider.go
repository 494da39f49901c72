// Package provider represents one discovered speech-provider peer: its bus
// proxy, its live voice set, and the synthesize call.
package provider

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"

	"github.com/voicebus/voicebus/internal/busconn"
	"github.com/voicebus/voicebus/internal/model"
)

// ProviderInterface is the D-Bus interface every provider object implements.
const ProviderInterface = "org.freedesktop.Speech.Provider"

// VoicesChangedFunc is called once per list-model edit produced by a voice
// set update (§4.2): Removed items at Position were replaced by Added.
type VoicesChangedFunc func(delta VoicesDelta)

// VoicesDelta re-exports the internal diff shape for package consumers.
type VoicesDelta = VoiceDelta

// Provider is a live object representing one bus peer offering synthesis
// voices. Its zero value is not usable; construct with New.
type Provider struct {
	identifier string
	conn       *busconn.Conn
	obj        dbus.BusObject

	mu            sync.RWMutex
	isActivatable bool
	name          string
	voices        []model.Voice
	voiceSet      map[string]struct{}

	onVoicesChanged VoicesChangedFunc
	warnedFeatures  map[string]bool
}

// New constructs a Provider for the given well-known bus name and performs
// the initial voices/name fetch. Per spec §4.3 step 3, a failure here is
// logged and skipped by the registry, not fatal to the whole init.
func New(ctx context.Context, conn *busconn.Conn, identifier string, isActivatable bool, onVoicesChanged VoicesChangedFunc) (*Provider, error) {
	p := &Provider{
		identifier:      identifier,
		conn:            conn,
		obj:             conn.Object(identifier),
		isActivatable:   isActivatable,
		voiceSet:        make(map[string]struct{}),
		onVoicesChanged: onVoicesChanged,
		warnedFeatures:  make(map[string]bool),
	}

	name, err := p.fetchName(ctx)
	if err != nil {
		return nil, fmt.Errorf("provider %s: fetch name: %w", identifier, err)
	}
	p.name = name

	voices, err := p.fetchVoices(ctx)
	if err != nil {
		return nil, fmt.Errorf("provider %s: fetch voices: %w", identifier, err)
	}
	p.applyVoices(voices)

	return p, nil
}

// Identifier is the provider's well-known bus name, which always ends in
// model.ProviderSuffix.
func (p *Provider) Identifier() string { return p.identifier }

// Name is the peer's advertised display name.
func (p *Provider) Name() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.name
}

// IsActivatable reports whether this name appeared in ListActivatableNames,
// meaning it persists across owner changes instead of being removed.
func (p *Provider) IsActivatable() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.isActivatable
}

// MarkActivatable upgrades this provider to activatable, for a name first
// discovered as merely running that later shows up in
// ListActivatableNames (spec §4.3: represented once, with is_activatable
// true). It never downgrades an already-activatable provider.
func (p *Provider) MarkActivatable() {
	p.mu.Lock()
	p.isActivatable = true
	p.mu.Unlock()
}

// Voices returns a snapshot of the provider's current, deduplicated,
// ordered voice set. The returned slice is a restartable view: call again
// to observe subsequent changes.
func (p *Provider) Voices() []model.Voice {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]model.Voice(nil), p.voices...)
}

// GetVoiceByID performs the O(n) scan spec'd in §4.2.
func (p *Provider) GetVoiceByID(id string) (model.Voice, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, v := range p.voices {
		if v.Identifier == id {
			return v, true
		}
	}
	return model.Voice{}, false
}

// RefreshVoices re-fetches and re-applies the voice list, e.g. in response
// to a PropertiesChanged notification for "Voices". Per §4.2 step 4, the
// registry must not call this when the notification is actually just an
// activatable provider losing its owner.
func (p *Provider) RefreshVoices(ctx context.Context) error {
	voices, err := p.fetchVoices(ctx)
	if err != nil {
		return fmt.Errorf("provider %s: refresh voices: %w", p.identifier, err)
	}
	p.applyVoices(voices)
	return nil
}

// applyVoices runs the §4.2 voice-set maintenance algorithm (steps 1-3;
// step 4 is the registry's call to make, by simply not calling this).
func (p *Provider) applyVoices(voices []model.Voice) {
	p.mu.Lock()
	updated, updatedSet, deltas := diffVoices(p.voices, p.voiceSet, voices)
	p.voices = updated
	p.voiceSet = updatedSet
	cb := p.onVoicesChanged
	p.mu.Unlock()

	if cb == nil {
		return
	}
	for _, d := range deltas {
		cb(d)
	}
}

// Synthesize issues the Synthesize RPC and returns once the peer has
// acknowledged the request, not once audio has finished streaming. The
// caller owns writeEnd and must close its own copy after the call returns,
// per the fd-ownership rule in spec §5.
func (p *Provider) Synthesize(ctx context.Context, text, voiceID string, pitch, rate float64, isSSML bool, language string, writeEnd *os.File) error {
	call := p.obj.CallWithContext(ctx, ProviderInterface+".Synthesize", 0,
		dbus.UnixFD(writeEnd.Fd()), text, voiceID, pitch, rate, isSSML, language, map[string]dbus.Variant{})
	if call.Err != nil {
		return fmt.Errorf("provider %s: synthesize: %w", p.identifier, call.Err)
	}
	return nil
}

func (p *Provider) fetchName(ctx context.Context) (string, error) {
	v, err := p.obj.GetPropertyWithContext(ctx, ProviderInterface+".Name")
	if err != nil {
		return "", err
	}
	name, ok := v.Value().(string)
	if !ok {
		return "", fmt.Errorf("provider %s: Name property has unexpected type %T", p.identifier, v.Value())
	}
	return name, nil
}

// rawVoice mirrors the (name, identifier, output_format, features, languages)
// tuple the Voices property marshals per spec §6.1.
type rawVoice struct {
	Name         string
	Identifier   string
	OutputFormat string
	Features     uint64
	Languages    []string
}

func (p *Provider) fetchVoices(ctx context.Context) ([]model.Voice, error) {
	v, err := p.obj.GetPropertyWithContext(ctx, ProviderInterface+".Voices")
	if err != nil {
		return nil, err
	}
	var raws []rawVoice
	if err := dbus.Store([]interface{}{v.Value()}, &raws); err != nil {
		return nil, fmt.Errorf("provider %s: decode Voices property: %w", p.identifier, err)
	}

	voices := make([]model.Voice, 0, len(raws))
	for _, rv := range raws {
		voice, truncated := model.NewVoice(p.identifier, rv.Name, rv.Identifier, rv.OutputFormat, rv.Features, rv.Languages)
		if truncated {
			p.warnFeatureTruncationOnce(voice.Identifier)
		}
		voices = append(voices, voice)
	}
	return voices, nil
}

func (p *Provider) warnFeatureTruncationOnce(voiceIdentifier string) {
	p.mu.Lock()
	already := p.warnedFeatures[voiceIdentifier]
	p.warnedFeatures[voiceIdentifier] = true
	p.mu.Unlock()

	if already {
		return
	}
	logrus.WithFields(logrus.Fields{
		"provider": p.identifier,
		"voice":    voiceIdentifier,
	}).Warn("voice advertises features bits above bit 31; dropping them")
}
