// Package resolver implements voice selection for an utterance, per the
// rule ladder in spec §4.4.
package resolver

import (
	"strings"

	"github.com/voicebus/voicebus/internal/config"
	"github.com/voicebus/voicebus/internal/model"
)

// VoiceLookup is the aggregate voices list the resolver searches. It is
// satisfied by *voiceslist.Model without an explicit import, keeping this
// package free of any dependency on how the aggregate is maintained.
type VoiceLookup interface {
	Voices() []model.Voice
}

// Resolver selects a voice for an utterance.
type Resolver struct {
	lookup VoiceLookup
	config config.Source
}

// New builds a Resolver. A nil cfg is treated as config.Empty{}.
func New(lookup VoiceLookup, cfg config.Source) *Resolver {
	if cfg == nil {
		cfg = config.Empty{}
	}
	return &Resolver{lookup: lookup, config: cfg}
}

// Resolve implements the six-rule ladder in spec §4.4.
func (r *Resolver) Resolve(u model.Utterance) (model.Voice, error) {
	if u.Voice != nil {
		return *u.Voice, nil
	}

	voices := r.lookup.Voices()

	if u.Language != "" {
		if m, ok := r.languageMapping(u.Language); ok {
			if voice, found := findPair(voices, m); found {
				return voice, nil
			}
		}
	}

	if m, ok := r.config.DefaultVoice(); ok {
		if voice, found := findPair(voices, m); found {
			return voice, nil
		}
	}

	if u.Language != "" {
		for _, v := range voices {
			if v.HasLanguage(u.Language) {
				return v, nil
			}
		}
	}

	if len(voices) > 0 {
		return voices[0], nil
	}

	return model.Voice{}, model.NewSynthesisError(model.ErrorKindNoProvidersAvailable, nil)
}

// languageMapping tries tag, then repeatedly drops its last '-'-separated
// segment, returning the first configured mapping found.
func (r *Resolver) languageMapping(tag string) (config.Mapping, bool) {
	for {
		if m, ok := r.config.LanguageVoice(tag); ok {
			return m, true
		}
		idx := strings.LastIndex(tag, "-")
		if idx < 0 {
			return config.Mapping{}, false
		}
		tag = tag[:idx]
	}
}

func findPair(voices []model.Voice, m config.Mapping) (model.Voice, bool) {
	for _, v := range voices {
		if v.ProviderIdentifier == m.ProviderIdentifier && v.Identifier == m.VoiceIdentifier {
			return v, true
		}
	}
	return model.Voice{}, false
}
