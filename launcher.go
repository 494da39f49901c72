package voicebus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/voicebus/voicebus/internal/model"
	"github.com/voicebus/voicebus/internal/pipeline"
	"github.com/voicebus/voicebus/internal/providersource"
	"github.com/voicebus/voicebus/internal/registry"
)

// pipelineLauncher is the Speaker's pipeline.Launcher: it resolves the
// entry's provider, wires a pipe, issues the Synthesize RPC, and dispatches
// the read end to the right stream handling per spec §4.5 step 2.
type pipelineLauncher struct {
	reg  *registry.Registry
	sink AudioSink
}

func (l *pipelineLauncher) Launch(entry *pipeline.Entry, feed pipeline.Feed) (func(), error) {
	format, err := model.ParseOutputFormat(entry.Voice.OutputFormat)
	if err != nil || !format.Usable() {
		return nil, model.NewSynthesisError(model.ErrorKindMisconfiguredVoice, err)
	}

	p, ok := l.reg.GetProvider(entry.Voice.ProviderIdentifier)
	if !ok {
		return nil, model.NewSynthesisError(model.ErrorKindProviderUnexpectedlyDied, nil)
	}

	readEnd, writeEnd, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("voicebus: create pipe: %w", err)
	}

	ctx, cancelRPC := context.WithCancel(context.Background())
	u := entry.Utterance
	err = p.Synthesize(ctx, u.Text, entry.Voice.Identifier, u.Pitch, u.Rate, u.IsSSML, u.Language, writeEnd)
	// The write end was handed to the peer by fd-number in the RPC call;
	// our copy must close regardless of outcome, per the fd-ownership
	// rule in spec §5.
	_ = writeEnd.Close()
	if err != nil {
		cancelRPC()
		_ = readEnd.Close()
		return nil, model.NewSynthesisError(model.ErrorKindProviderInternalFailure, err)
	}

	adapter := &sinkAdapter{sink: l.sink, format: format, volume: u.Volume}
	if format.Framed() {
		go runFramedStream(readEnd, adapter, feed)
	} else {
		go runRawStream(readEnd, format, adapter, feed)
	}

	return func() {
		cancelRPC()
		_ = readEnd.Close()
	}, nil
}

func runFramedStream(r io.ReadCloser, sink providersource.AudioSink, feed pipeline.Feed) {
	defer r.Close()
	providersource.New(r, sink).Run(feed)
}

// runRawStream handles audio/x-raw: there is no §4.1 framing to decode, so
// bytes read from the pipe are PCM payload directly, per spec §4.5 step 2.
func runRawStream(r io.ReadCloser, format OutputFormat, sink providersource.AudioSink, feed pipeline.Feed) {
	defer r.Close()
	feed.Started()

	buf := make([]byte, 32*1024)
	for {
		n, readErr := r.Read(buf)
		if n > 0 {
			if err := sink.WriteAudio(buf[:n]); err != nil {
				feed.Done(fmt.Errorf("voicebus: write raw audio: %w", err))
				return
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				feed.Done(nil)
			} else {
				feed.Done(fmt.Errorf("voicebus: read raw stream: %w", readErr))
			}
			return
		}
	}
}
