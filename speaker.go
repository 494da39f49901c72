package voicebus

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/voicebus/voicebus/internal/config"
	"github.com/voicebus/voicebus/internal/model"
	"github.com/voicebus/voicebus/internal/pipeline"
	"github.com/voicebus/voicebus/internal/provider"
	"github.com/voicebus/voicebus/internal/registry"
	"github.com/voicebus/voicebus/internal/resolver"
	"github.com/voicebus/voicebus/internal/voiceslist"
)

// ErrSinkRequired is returned by New/NewSync when Options.Sink is nil.
var ErrSinkRequired = errors.New("voicebus: Options.Sink is required")

// Options configures a Speaker. Sink is required; every other field is
// optional. The signal handlers (spec §4.5) are simply not invoked if nil.
type Options struct {
	// Sink receives decoded PCM for every utterance this Speaker plays.
	Sink AudioSink
	// Config resolves the voice-resolution store (spec §6.3). A nil
	// Config behaves as "no default voice, empty language mapping".
	Config config.Source

	Started  func(Utterance)
	Finished func(Utterance)
	Canceled func(Utterance)
	Error    func(Utterance, ErrorKind)

	Word     func(u Utterance, rangeStart, rangeEnd uint32)
	Sentence func(u Utterance, rangeStart, rangeEnd uint32)
	Range    func(u Utterance, rangeStart, rangeEnd uint32)
	Mark     func(u Utterance, name string)

	SpeakingChanged func(bool)
	PausedChanged   func(bool)
}

// Speaker is the public façade (spec §3, §4.5): it owns a Registry handle,
// a FIFO utterance queue, and the playback pipeline driving it.
type Speaker struct {
	reg      *registry.Registry
	resolver *resolver.Resolver
	queue    *pipeline.Queue

	unsubProviderRemoved func()
}

// New constructs a Speaker, acquiring (or joining) the process-wide
// ProviderRegistry. This is a suspension point (spec §5): it blocks on bus
// acquisition and initial enumeration, cancelable via ctx.
func New(ctx context.Context, opts Options) (*Speaker, error) {
	if opts.Sink == nil {
		return nil, ErrSinkRequired
	}

	reg, err := registry.Get(ctx)
	if err != nil {
		return nil, err
	}

	s := &Speaker{
		reg:      reg,
		resolver: resolver.New(reg, opts.Config),
	}
	launcher := &pipelineLauncher{reg: reg, sink: opts.Sink}
	s.queue = pipeline.New(launcher, pipeline.Callbacks{
		Started:         opts.Started,
		Finished:        opts.Finished,
		Canceled:        opts.Canceled,
		Error:           opts.Error,
		Word:            opts.Word,
		Sentence:        opts.Sentence,
		Range:           opts.Range,
		Mark:            opts.Mark,
		SpeakingChanged: opts.SpeakingChanged,
		PausedChanged:   opts.PausedChanged,
	})

	// A provider vanishing mid-synthesis otherwise surfaces as the pipe's
	// write end simply closing, which the launcher's stream reader cannot
	// tell apart from a clean end-of-stream; fail the in-flight entry
	// explicitly instead (spec §4.2, §7 ProviderUnexpectedlyDied).
	s.unsubProviderRemoved = reg.SubscribeProviderRemoved(func(identifier string) {
		s.queue.FailProvider(identifier, model.NewSynthesisError(model.ErrorKindProviderUnexpectedlyDied, nil))
	})

	return s, nil
}

// NewSync is the blocking variant of New (spec §5, §9 "synchronous façade
// for non-async callers"): it drives initialization to completion against
// a background context with no caller-supplied cancellation, rather than
// rejecting a ctx-bearing call from whatever loop the caller is on.
func NewSync(opts Options) (*Speaker, error) {
	return New(context.Background(), opts)
}

// Speak resolves a voice for u (spec §4.4) and appends it to the queue. If
// u.ID is empty one is assigned, mirroring NewUtterance's default. A
// resolution failure still produces exactly one utterance-error signal
// naming u, per spec §7's "no utterance is silently dropped" guarantee;
// u never occupies a queue slot in that case.
func (s *Speaker) Speak(u Utterance) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	voice, err := s.resolver.Resolve(u)
	if err != nil {
		s.queue.Fail(u, err)
		return
	}
	s.queue.Speak(u, voice)
}

// Pause sets the paused state (spec §4.5); it does not affect queue
// contents. It holds back only a head entry that has not started playing
// yet; audio of an entry already playing keeps flowing to the sink.
func (s *Speaker) Pause() { s.queue.Pause() }

// Resume toggles the pipeline out of paused.
func (s *Speaker) Resume() { s.queue.Resume() }

// Cancel drops the queue's tail and terminates the current entry, if any,
// as canceled. A no-op on an empty queue.
func (s *Speaker) Cancel() { s.queue.Cancel() }

// Speaking reports whether an utterance is currently queued or playing.
func (s *Speaker) Speaking() bool { return s.queue.Speaking() }

// Paused reports the last Pause/Resume state set by the caller.
func (s *Speaker) Paused() bool { return s.queue.Paused() }

// Voices returns the live aggregate voices list (spec §4.3 ordering).
func (s *Speaker) Voices() []Voice { return s.reg.Voices() }

// Providers returns a snapshot of tracked providers, ordered by identifier.
func (s *Speaker) Providers() []*provider.Provider { return s.reg.Providers() }

// SubscribeVoicesChanged registers fn to run after the aggregate voices
// list changes. The returned function unsubscribes it.
func (s *Speaker) SubscribeVoicesChanged(fn voiceslist.ChangeFunc) (unsubscribe func()) {
	return s.reg.SubscribeVoicesChanged(fn)
}

// Close releases this Speaker's queue and its registry subscriptions. It
// does not affect the process-wide Registry, which outlives any one
// Speaker.
func (s *Speaker) Close() {
	s.unsubProviderRemoved()
	s.queue.Close()
}
