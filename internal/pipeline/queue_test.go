package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicebus/voicebus/internal/model"
	"github.com/voicebus/voicebus/internal/wire"
)

// manualLauncher hands control of Started/Event/Done back to the test via
// the feeds it records, instead of firing them itself.
type manualLauncher struct {
	feeds     []Feed
	cancelled []string
	failWith  error
}

func (l *manualLauncher) Launch(entry *Entry, feed Feed) (func(), error) {
	if l.failWith != nil {
		return nil, l.failWith
	}
	l.feeds = append(l.feeds, feed)
	id := entry.ID
	return func() { l.cancelled = append(l.cancelled, id) }, nil
}

type recorder struct {
	started  []string
	finished []string
	canceled []string
	errored  []model.ErrorKind
	speaking []bool
	paused   []bool
}

func newTestQueue(l *manualLauncher, r *recorder) *Queue {
	return New(l, Callbacks{
		Started:         func(u model.Utterance) { r.started = append(r.started, u.ID) },
		Finished:        func(u model.Utterance) { r.finished = append(r.finished, u.ID) },
		Canceled:        func(u model.Utterance) { r.canceled = append(r.canceled, u.ID) },
		Error:           func(u model.Utterance, k model.ErrorKind) { r.errored = append(r.errored, k) },
		SpeakingChanged: func(v bool) { r.speaking = append(r.speaking, v) },
		PausedChanged:   func(v bool) { r.paused = append(r.paused, v) },
	})
}

func TestBasicSpeak(t *testing.T) {
	l := &manualLauncher{}
	r := &recorder{}
	q := newTestQueue(l, r)
	defer q.Close()

	u := model.NewUtterance("u1", "hello")
	q.Speak(u, model.Voice{})
	q.Flush()

	require.Len(t, l.feeds, 1)
	l.feeds[0].Started()
	q.Flush()
	assert.Equal(t, []string{"u1"}, r.started)

	l.feeds[0].Done(nil)
	q.Flush()

	assert.Equal(t, []string{"u1"}, r.finished)
	assert.Equal(t, []bool{true, false}, r.speaking)
}

func TestQueueingPauseResumeCancel(t *testing.T) {
	l := &manualLauncher{}
	r := &recorder{}
	q := newTestQueue(l, r)
	defer q.Close()

	u1 := model.NewUtterance("u1", "one")
	u2 := model.NewUtterance("u2", "two")
	u3 := model.NewUtterance("u3", "three")

	q.Speak(u1, model.Voice{})
	q.Speak(u2, model.Voice{})
	q.Speak(u3, model.Voice{})
	q.Pause()
	q.Flush()

	require.Len(t, l.feeds, 1)
	l.feeds[0].Started()
	q.Flush()
	// Paused before the pipeline linked: started must not fire yet.
	assert.Empty(t, r.started)

	q.Resume()
	q.Flush()
	assert.Equal(t, []string{"u1"}, r.started)

	q.Cancel()
	q.Flush()

	assert.Equal(t, []string{"u1"}, r.canceled)
	assert.Empty(t, r.finished)
	assert.Equal(t, []string{"u1"}, l.cancelled)
	assert.False(t, q.Speaking())
}

func TestCancelOnEmptyQueueIsNoop(t *testing.T) {
	l := &manualLauncher{}
	r := &recorder{}
	q := newTestQueue(l, r)
	defer q.Close()

	q.Cancel()
	q.Flush()

	assert.Empty(t, r.canceled)
	assert.Empty(t, r.finished)
	assert.Empty(t, r.started)
}

func TestMidUtteranceProviderDeath(t *testing.T) {
	l := &manualLauncher{}
	r := &recorder{}
	q := newTestQueue(l, r)
	defer q.Close()

	q.Speak(model.NewUtterance("u1", "hi"), model.Voice{})
	q.Flush()
	require.Len(t, l.feeds, 1)
	l.feeds[0].Started()
	q.Flush()

	l.feeds[0].Done(model.NewSynthesisError(model.ErrorKindProviderUnexpectedlyDied, nil))
	q.Flush()

	require.Len(t, r.errored, 1)
	assert.Equal(t, model.ErrorKindProviderUnexpectedlyDied, r.errored[0])
	assert.Empty(t, r.finished)
}

func TestFailProviderFailsMatchingHeadEntryAndAdvances(t *testing.T) {
	l := &manualLauncher{}
	r := &recorder{}
	q := newTestQueue(l, r)
	defer q.Close()

	u1 := model.NewUtterance("u1", "hi")
	u2 := model.NewUtterance("u2", "there")
	q.Speak(u1, model.Voice{ProviderIdentifier: "org.example.Dead.Speech.Provider"})
	q.Speak(u2, model.Voice{ProviderIdentifier: "org.example.Other.Speech.Provider"})
	q.Flush()
	require.Len(t, l.feeds, 1)

	q.FailProvider("org.example.Dead.Speech.Provider", model.NewSynthesisError(model.ErrorKindProviderUnexpectedlyDied, nil))
	q.Flush()

	require.Len(t, r.errored, 1)
	assert.Equal(t, model.ErrorKindProviderUnexpectedlyDied, r.errored[0])
	assert.Equal(t, []string{"u1"}, l.cancelled)
	require.Len(t, l.feeds, 2)
	assert.True(t, q.Speaking())
}

func TestFailProviderIgnoresNonMatchingHeadEntry(t *testing.T) {
	l := &manualLauncher{}
	r := &recorder{}
	q := newTestQueue(l, r)
	defer q.Close()

	q.Speak(model.NewUtterance("u1", "hi"), model.Voice{ProviderIdentifier: "org.example.Live.Speech.Provider"})
	q.Flush()
	require.Len(t, l.feeds, 1)

	q.FailProvider("org.example.Other.Speech.Provider", model.NewSynthesisError(model.ErrorKindProviderUnexpectedlyDied, nil))
	q.Flush()

	assert.Empty(t, r.errored)
	assert.Empty(t, l.cancelled)
	assert.True(t, q.Speaking())
}

func TestDeferredEventsFlushInArrivalOrderAfterStarted(t *testing.T) {
	l := &manualLauncher{}
	r := &recorder{}
	var seen []string
	q := New(l, Callbacks{
		Started: func(u model.Utterance) { seen = append(seen, "started") },
		Word:    func(u model.Utterance, s, e uint32) { seen = append(seen, "word") },
		Mark:    func(u model.Utterance, name string) { seen = append(seen, "mark:"+name) },
	})
	defer q.Close()

	q.Speak(model.NewUtterance("u1", "hi"), model.Voice{})
	q.Flush()
	require.Len(t, l.feeds, 1)

	l.feeds[0].Event(wire.Event{Type: wire.EventWord})
	l.feeds[0].Event(wire.Event{Type: wire.EventMark, Mark: "m1"})
	q.Flush()
	assert.Empty(t, seen, "events before Started must be buffered, not emitted")

	l.feeds[0].Started()
	q.Flush()

	assert.Equal(t, []string{"started", "word", "mark:m1"}, seen)
}

func TestLateCompletionAfterCancelIsIgnored(t *testing.T) {
	l := &manualLauncher{}
	r := &recorder{}
	q := newTestQueue(l, r)
	defer q.Close()

	q.Speak(model.NewUtterance("u1", "hi"), model.Voice{})
	q.Flush()
	require.Len(t, l.feeds, 1)
	stale := l.feeds[0]

	q.Cancel()
	q.Flush()
	assert.Equal(t, []string{"u1"}, r.canceled)

	// A completion arriving after the entry was already removed must not
	// re-trigger a terminal signal.
	stale.Done(nil)
	q.Flush()
	assert.Empty(t, r.finished)
	assert.Equal(t, []string{"u1"}, r.canceled)
}

func TestLaunchFailureIsMisconfiguredVoiceStyleError(t *testing.T) {
	l := &manualLauncher{failWith: model.NewSynthesisError(model.ErrorKindMisconfiguredVoice, nil)}
	r := &recorder{}
	q := newTestQueue(l, r)
	defer q.Close()

	q.Speak(model.NewUtterance("u1", "hi"), model.Voice{})
	q.Flush()

	require.Len(t, r.errored, 1)
	assert.Equal(t, model.ErrorKindMisconfiguredVoice, r.errored[0])
	assert.Empty(t, r.started)
}

func TestFailNeverEntersQueueOrTouchesSpeaking(t *testing.T) {
	l := &manualLauncher{}
	r := &recorder{}
	q := newTestQueue(l, r)
	defer q.Close()

	q.Fail(model.NewUtterance("u1", "hi"), model.NewSynthesisError(model.ErrorKindNoProvidersAvailable, nil))
	q.Flush()

	require.Len(t, r.errored, 1)
	assert.Equal(t, model.ErrorKindNoProvidersAvailable, r.errored[0])
	assert.Empty(t, r.started)
	assert.Empty(t, l.feeds)
	assert.False(t, q.Speaking())
}

func TestPauseWithEmptyQueueStillUpdatesPaused(t *testing.T) {
	l := &manualLauncher{}
	r := &recorder{}
	q := newTestQueue(l, r)
	defer q.Close()

	q.Pause()
	q.Flush()
	assert.True(t, q.Paused())
	assert.Equal(t, []bool{true}, r.paused)
}
