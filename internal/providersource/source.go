// Package providersource implements the ProviderSource pipeline element of
// spec §4.6: it pulls a provider's audio/x-spiel stream and republishes it
// as in-band pipeline events plus PCM buffers.
package providersource

import (
	"fmt"
	"io"

	"github.com/voicebus/voicebus/internal/model"
	"github.com/voicebus/voicebus/internal/pipeline"
	"github.com/voicebus/voicebus/internal/wire"
)

// AudioSink receives decoded PCM buffers pulled from the stream, in order.
type AudioSink interface {
	WriteAudio(pcm []byte) error
}

// Source drives the §4.6 pull loop over one entry's stream.
type Source struct {
	reader *wire.Reader
	sink   AudioSink
}

// New wraps r (the read end of the entry's pipe) and sink (where decoded
// PCM is delivered).
func New(r io.Reader, sink AudioSink) *Source {
	return &Source{reader: wire.NewReader(r), sink: sink}
}

// Run drives the pull loop to completion on the calling goroutine, reporting
// progress on feed and terminating it exactly once via feed.Done. Callers
// that need this non-blocking should run it in its own goroutine; feed
// implementations (e.g. the pipeline package's) are safe to call from any
// goroutine.
func (s *Source) Run(feed pipeline.Feed) {
	ok, err := s.reader.ReadHeader()
	if err != nil || !ok {
		feed.Done(model.NewSynthesisError(model.ErrorKindProtocolVersionMismatch, err))
		return
	}
	feed.Started()

	for {
		for {
			found, ev, _ := s.reader.NextEvent()
			if !found {
				break
			}
			feed.Event(ev)
		}

		found, payload, _ := s.reader.NextAudio()
		if found {
			if len(payload) > 0 {
				if err := s.sink.WriteAudio(payload); err != nil {
					feed.Done(fmt.Errorf("providersource: write audio: %w", err))
					return
				}
			}
			continue
		}

		if s.reader.Ended() {
			feed.Done(nil)
			return
		}
		// Next chunk turned out to be an event that arrived after the drain
		// loop above exited; loop around to drain it.
	}
}
