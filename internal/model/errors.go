package model

import "fmt"

// ErrorKind classifies why an utterance or an operation failed, per spec §7.
type ErrorKind int

const (
	// ErrorKindUnknown is the zero value; never produced deliberately.
	ErrorKindUnknown ErrorKind = iota
	// ErrorKindNoProvidersAvailable: resolution produced no voice because
	// the aggregate voices list was empty.
	ErrorKindNoProvidersAvailable
	// ErrorKindMisconfiguredVoice: the resolved voice's output_format is
	// neither audio/x-raw nor audio/x-spiel, or its parameters are unusable.
	ErrorKindMisconfiguredVoice
	// ErrorKindProviderUnexpectedlyDied: the provider owning the current
	// utterance vanished from the bus mid-synthesis.
	ErrorKindProviderUnexpectedlyDied
	// ErrorKindProviderInternalFailure: the synthesize RPC returned an
	// error from the peer.
	ErrorKindProviderInternalFailure
	// ErrorKindBusUnavailable: the session bus could not be acquired
	// (init-fatal).
	ErrorKindBusUnavailable
	// ErrorKindProtocolVersionMismatch: the stream header version did not
	// match HeaderVersion.
	ErrorKindProtocolVersionMismatch
	// ErrorKindCanceled is used internally; surfaced to callers as the
	// utterance-canceled signal, never as utterance-error.
	ErrorKindCanceled
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindNoProvidersAvailable:
		return "no-providers-available"
	case ErrorKindMisconfiguredVoice:
		return "misconfigured-voice"
	case ErrorKindProviderUnexpectedlyDied:
		return "provider-unexpectedly-died"
	case ErrorKindProviderInternalFailure:
		return "provider-internal-failure"
	case ErrorKindBusUnavailable:
		return "bus-unavailable"
	case ErrorKindProtocolVersionMismatch:
		return "protocol-version-mismatch"
	case ErrorKindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// SynthesisError is the error type that carries the kind utterance-error
// reports, and that operations failing with one of the spec'd error kinds
// return.
type SynthesisError struct {
	Kind ErrorKind
	Err  error
}

func NewSynthesisError(kind ErrorKind, err error) *SynthesisError {
	return &SynthesisError{Kind: kind, Err: err}
}

func (e *SynthesisError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("voicebus: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("voicebus: %s", e.Kind)
}

func (e *SynthesisError) Unwrap() error { return e.Err }
