package voicebus

import "github.com/voicebus/voicebus/internal/model"

// ErrorKind classifies why an utterance, or Speaker/Registry construction,
// failed. See the utterance-error signal and the New/NewSync return.
type ErrorKind = model.ErrorKind

// SynthesisError carries the ErrorKind that utterance-error reports (the
// signal itself receives only the kind) and is returned by registry
// construction failures; Unwrap exposes the underlying cause.
type SynthesisError = model.SynthesisError

// Error kinds, re-exported from internal/model so callers never import it.
const (
	ErrorKindUnknown                  = model.ErrorKindUnknown
	ErrorKindNoProvidersAvailable     = model.ErrorKindNoProvidersAvailable
	ErrorKindMisconfiguredVoice       = model.ErrorKindMisconfiguredVoice
	ErrorKindProviderUnexpectedlyDied = model.ErrorKindProviderUnexpectedlyDied
	ErrorKindProviderInternalFailure  = model.ErrorKindProviderInternalFailure
	ErrorKindBusUnavailable           = model.ErrorKindBusUnavailable
	ErrorKindProtocolVersionMismatch  = model.ErrorKindProtocolVersionMismatch
	ErrorKindCanceled                 = model.ErrorKindCanceled
)
