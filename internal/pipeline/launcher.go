package pipeline

import "github.com/voicebus/voicebus/internal/wire"

// Feed is how a launched entry reports progress back to the Queue that
// launched it. Implementations marshal these calls onto the Queue's own
// loop, so callers may invoke them from any goroutine.
type Feed interface {
	// Started marks the entry's pipeline as linked and producing audio for
	// the first time. Called at most once per entry.
	Started()
	// Event reports one in-band word/sentence/range/mark notification.
	Event(ev wire.Event)
	// Done reports terminal completion. nil means a clean end-of-stream; a
	// *model.SynthesisError classifies cancellation vs failure kinds.
	Done(err error)
}

// Launcher starts playback for an entry once it becomes the queue head. The
// Speaker supplies the real implementation (provider RPC, pipe plumbing,
// wire decode via ProviderSource); tests supply a stub.
type Launcher interface {
	// Launch begins synthesis+playback for entry, reporting progress via
	// feed. A non-nil error fails the entry immediately without calling
	// feed. The returned cancel tears down any in-flight work; it is nil
	// only if Launch itself failed.
	Launch(entry *Entry, feed Feed) (cancel func(), err error)
}
