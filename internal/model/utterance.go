package model

// Utterance bundles text with its synthesis parameters. NewUtterance applies
// the defaults noted per-field; a zero field is used as-is, not replaced by
// its default.
type Utterance struct {
	ID string // assigned by the caller of NewUtterance; identifies it across late/async completions

	Text string

	// Pitch in [0, 2], default 1.
	Pitch float64
	// Rate in [0.1, 10], default 1.
	Rate float64
	// Volume in [0, 1], default 1.
	Volume float64

	// Voice, if set, forces voice resolution rule 1 (§4.4).
	Voice *Voice
	// Language is an optional BCP-47 tag used by resolution rules 2 and 4.
	Language string

	IsSSML bool
}

const (
	DefaultPitch  = 1.0
	DefaultRate   = 1.0
	DefaultVolume = 1.0
)

// NewUtterance builds an Utterance with text and the documented defaults.
// id should be unique within the Speaker that will queue it; the pipeline
// uses it (not a slot index) to match late, asynchronous RPC completions
// back to their entry, so cancellation after the completion is already in
// flight is harmless.
func NewUtterance(id, text string) Utterance {
	return Utterance{
		ID:     id,
		Text:   text,
		Pitch:  DefaultPitch,
		Rate:   DefaultRate,
		Volume: DefaultVolume,
	}
}
