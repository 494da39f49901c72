package voicebus

import (
	"github.com/google/uuid"

	"github.com/voicebus/voicebus/internal/model"
)

// Utterance bundles text with its synthesis parameters (spec §3). Use
// NewUtterance to get one with its defaults applied and an ID assigned.
type Utterance = model.Utterance

// Synthesis parameter defaults, per spec §3.
const (
	DefaultPitch  = model.DefaultPitch
	DefaultRate   = model.DefaultRate
	DefaultVolume = model.DefaultVolume
)

// NewUtterance builds an Utterance for text, with Pitch/Rate/Volume at
// their defaults and a fresh ID. The ID is how the Speaker matches late,
// asynchronous provider completions back to the right utterance; it plays
// no role in equality or hashing.
func NewUtterance(text string) Utterance {
	return model.NewUtterance(uuid.NewString(), text)
}
