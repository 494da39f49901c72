// Package pipeline implements the Speaker's FIFO utterance queue and the
// per-entry playback state machine (spec §4.5), decoupled from D-Bus and
// wire decoding behind the Launcher interface.
package pipeline

import (
	"errors"
	"sync/atomic"

	"github.com/voicebus/voicebus/internal/model"
	"github.com/voicebus/voicebus/internal/wire"
)

// Callbacks are the Speaker signals a Queue emits. Every field is optional;
// a nil callback is simply not invoked. All calls happen on the Queue's own
// loop goroutine, one at a time, in the order spec'd in §5.
type Callbacks struct {
	Started         func(model.Utterance)
	Finished        func(model.Utterance)
	Canceled        func(model.Utterance)
	Error           func(model.Utterance, model.ErrorKind)
	Word            func(u model.Utterance, start, end uint32)
	Sentence        func(u model.Utterance, start, end uint32)
	Range           func(u model.Utterance, start, end uint32)
	Mark            func(u model.Utterance, name string)
	SpeakingChanged func(bool)
	PausedChanged   func(bool)
}

// Queue is the Speaker's FIFO utterance queue plus pipeline state machine.
// All mutation happens on a single internal goroutine, giving the "single-
// threaded cooperative" semantics spec §5 requires of Speaker operations.
type Queue struct {
	launcher  Launcher
	callbacks Callbacks

	cmds chan func()
	done chan struct{}

	speaking atomic.Bool
	paused   atomic.Bool

	entries []*Entry // FIFO; entries[0] is the current/head entry
}

// New starts a Queue backed by launcher. Call Close when done.
func New(launcher Launcher, callbacks Callbacks) *Queue {
	q := &Queue{
		launcher:  launcher,
		callbacks: callbacks,
		cmds:      make(chan func(), 32),
		done:      make(chan struct{}),
	}
	go q.run()
	return q
}

// Close stops the Queue's loop. It does not cancel the current entry.
func (q *Queue) Close() { close(q.done) }

func (q *Queue) run() {
	for {
		select {
		case fn := <-q.cmds:
			fn()
		case <-q.done:
			return
		}
	}
}

// exec runs fn on the loop and blocks until it has completed.
func (q *Queue) exec(fn func()) {
	result := make(chan struct{})
	select {
	case q.cmds <- func() { fn(); close(result) }:
	case <-q.done:
		return
	}
	select {
	case <-result:
	case <-q.done:
	}
}

// post runs fn on the loop without waiting for it to run.
func (q *Queue) post(fn func()) {
	select {
	case q.cmds <- fn:
	case <-q.done:
	}
}

// Flush blocks until every command enqueued before this call has been
// processed. Tests use it as a barrier after triggering async Feed calls.
func (q *Queue) Flush() { q.exec(func() {}) }

// Speaking reports whether the queue currently has an active entry.
func (q *Queue) Speaking() bool { return q.speaking.Load() }

// Paused reports the last pause/resume state set by the caller.
func (q *Queue) Paused() bool { return q.paused.Load() }

// Entries returns a snapshot of queued utterances, head first.
func (q *Queue) Entries() []model.Utterance {
	var out []model.Utterance
	q.exec(func() {
		out = make([]model.Utterance, len(q.entries))
		for i, e := range q.entries {
			out[i] = e.Utterance
		}
	})
	return out
}

// Speak appends u to the queue. If the queue was empty it becomes the head
// and building begins immediately.
func (q *Queue) Speak(u model.Utterance, voice model.Voice) {
	q.exec(func() {
		e := newEntry(u, voice)
		wasEmpty := len(q.entries) == 0
		q.entries = append(q.entries, e)
		if wasEmpty {
			q.setSpeaking(true)
			q.advanceHead()
		}
	})
}

// Cancel drops the queue's tail and terminates the current entry as
// canceled. A no-op on an empty queue, per the spec'd boundary behavior.
func (q *Queue) Cancel() {
	q.exec(func() {
		if len(q.entries) == 0 {
			return
		}
		head := q.entries[0]
		q.entries = q.entries[:1]
		if head.cancel != nil {
			head.cancel()
		}
		q.finishHead(head, model.NewSynthesisError(model.ErrorKindCanceled, nil))
	})
}

// Pause sets the paused state. It does not affect queue contents; with an
// empty queue it still updates the observable. It holds back only a head
// entry that has not started playing yet (see Resume); an entry already
// playing is not paused and keeps delivering audio.
func (q *Queue) Pause() {
	q.exec(func() {
		q.setPaused(true)
	})
}

// Resume toggles the pipeline out of paused, releasing a head entry that
// finished building while paused into PLAYING.
func (q *Queue) Resume() {
	q.exec(func() {
		q.setPaused(false)
		if len(q.entries) == 0 {
			return
		}
		e := q.entries[0]
		if e.readyToPlay {
			e.readyToPlay = false
			q.transitionToPlaying(e)
		}
	})
}

// Fail reports u as terminally errored without it ever entering the queue,
// for failures (e.g. voice resolution) discovered before an entry can be
// built. It never touches queue contents or the speaking observable.
func (q *Queue) Fail(u model.Utterance, err error) {
	q.post(func() {
		kind := model.ErrorKindProviderInternalFailure
		var se *model.SynthesisError
		if errors.As(err, &se) {
			kind = se.Kind
		}
		if q.callbacks.Error != nil {
			q.callbacks.Error(u, kind)
		}
	})
}

// FailProvider terminates the current head entry with err if it belongs to
// providerIdentifier, and advances the queue afterward. It is a no-op if
// the head entry (if any) resolved to a different provider. Used when a
// provider vanishes from the bus mid-synthesis, so the in-flight
// utterance still gets a terminal utterance-error signal instead of
// hanging or finishing clean once its pipe simply reads EOF (spec §4.2,
// §7 ProviderUnexpectedlyDied).
func (q *Queue) FailProvider(providerIdentifier string, err error) {
	q.post(func() {
		if len(q.entries) == 0 {
			return
		}
		head := q.entries[0]
		if head.Voice.ProviderIdentifier != providerIdentifier {
			return
		}
		if head.cancel != nil {
			head.cancel()
		}
		q.finishHead(head, err)
	})
}

func (q *Queue) advanceHead() {
	if len(q.entries) == 0 {
		return
	}
	head := q.entries[0]
	head.State = StateBuilding

	feed := &queueFeed{q: q, entryID: head.ID}
	cancel, err := q.launcher.Launch(head, feed)
	if err != nil {
		q.finishHead(head, err)
		return
	}
	head.cancel = cancel
}

func (q *Queue) transitionToPlaying(e *Entry) {
	e.State = StatePlaying
	e.started = true
	if q.callbacks.Started != nil {
		q.callbacks.Started(e.Utterance)
	}
	deferred := e.deferred
	e.deferred = nil
	for _, ev := range deferred {
		q.emitEvent(e, ev)
	}
}

func (q *Queue) emitEvent(e *Entry, ev wire.Event) {
	switch ev.Type {
	case wire.EventWord:
		if q.callbacks.Word != nil {
			q.callbacks.Word(e.Utterance, ev.RangeStart, ev.RangeEnd)
		}
	case wire.EventSentence:
		if q.callbacks.Sentence != nil {
			q.callbacks.Sentence(e.Utterance, ev.RangeStart, ev.RangeEnd)
		}
	case wire.EventRange:
		if q.callbacks.Range != nil {
			q.callbacks.Range(e.Utterance, ev.RangeStart, ev.RangeEnd)
		}
	case wire.EventMark:
		if q.callbacks.Mark != nil {
			q.callbacks.Mark(e.Utterance, ev.Mark)
		}
	}
}

// finishHead ends the current head entry with err (nil for clean end),
// emits its terminal signal, and advances the queue to the next entry.
func (q *Queue) finishHead(e *Entry, err error) {
	switch {
	case err == nil:
		e.State = StateEnded
		if q.callbacks.Finished != nil {
			q.callbacks.Finished(e.Utterance)
		}
	case isCanceled(err):
		e.State = StateCanceled
		if q.callbacks.Canceled != nil {
			q.callbacks.Canceled(e.Utterance)
		}
	default:
		e.State = StateError
		kind := model.ErrorKindProviderInternalFailure
		var se *model.SynthesisError
		if errors.As(err, &se) {
			kind = se.Kind
		}
		if q.callbacks.Error != nil {
			q.callbacks.Error(e.Utterance, kind)
		}
	}

	if len(q.entries) > 0 && q.entries[0] == e {
		q.entries = q.entries[1:]
	}
	if len(q.entries) == 0 {
		q.setSpeaking(false)
		return
	}
	q.advanceHead()
}

func isCanceled(err error) bool {
	var se *model.SynthesisError
	return errors.As(err, &se) && se.Kind == model.ErrorKindCanceled
}

func (q *Queue) setSpeaking(v bool) {
	if q.speaking.Swap(v) == v {
		return
	}
	if q.callbacks.SpeakingChanged != nil {
		q.callbacks.SpeakingChanged(v)
	}
}

func (q *Queue) setPaused(v bool) {
	if q.paused.Swap(v) == v {
		return
	}
	if q.callbacks.PausedChanged != nil {
		q.callbacks.PausedChanged(v)
	}
}

// queueFeed marshals Feed calls from arbitrary goroutines onto the owning
// Queue's loop, and drops stale calls for an entry that is no longer head
// (late completions after cancellation, per spec's cooperative-cancellation
// design note).
type queueFeed struct {
	q       *Queue
	entryID string
}

func (f *queueFeed) Started() {
	f.q.post(func() {
		if !f.isHead() {
			return
		}
		e := f.q.entries[0]
		if e.State != StateBuilding {
			return
		}
		if f.q.Paused() {
			e.readyToPlay = true
			return
		}
		f.q.transitionToPlaying(e)
	})
}

func (f *queueFeed) Event(ev wire.Event) {
	f.q.post(func() {
		if !f.isHead() {
			return
		}
		e := f.q.entries[0]
		if !e.started {
			e.deferred = append(e.deferred, ev)
			return
		}
		f.q.emitEvent(e, ev)
	})
}

func (f *queueFeed) Done(err error) {
	f.q.post(func() {
		if !f.isHead() {
			return
		}
		f.q.finishHead(f.q.entries[0], err)
	})
}

func (f *queueFeed) isHead() bool {
	return len(f.q.entries) > 0 && f.q.entries[0].ID == f.entryID
}
