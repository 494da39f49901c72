package pipeline

import (
	"github.com/voicebus/voicebus/internal/model"
	"github.com/voicebus/voicebus/internal/wire"
)

// Entry is one queued utterance and its playback state (spec §3 QueueEntry).
// It is confined to the owning Queue's single loop goroutine; nothing here
// is safe for access from outside that loop.
type Entry struct {
	ID        string
	Utterance model.Utterance
	Voice     model.Voice
	State     State

	started     bool
	readyToPlay bool
	deferred    []wire.Event

	cancel func()
}

func newEntry(u model.Utterance, voice model.Voice) *Entry {
	return &Entry{ID: u.ID, Utterance: u, Voice: voice, State: StateIdle}
}
