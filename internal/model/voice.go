// Package model holds the value types shared across the voicebus core:
// Voice, Utterance, output-format parsing and the error-kind taxonomy.
// Nothing here talks to the bus or owns a goroutine.
package model

import "strings"

// ProviderSuffix is the literal suffix every provider's well-known bus name
// must end with.
const ProviderSuffix = ".Speech.Provider"

// Voice is an immutable description of one synthesis profile offered by a
// provider. It holds the provider's identifier rather than a pointer to the
// Provider itself, so a Voice retained by caller code never keeps a dead
// Provider alive; resolving the live Provider is the registry's job.
type Voice struct {
	Name               string
	Identifier         string
	Languages          []string
	Features           uint32
	OutputFormat       string
	ProviderIdentifier string
}

// Key returns the string that Voice equality, hashing and set membership
// are derived from: (provider identifier, name, identifier, languages).
// OutputFormat is deliberately excluded.
func (v Voice) Key() string {
	var b strings.Builder
	b.WriteString(v.ProviderIdentifier)
	b.WriteByte(0)
	b.WriteString(v.Name)
	b.WriteByte(0)
	b.WriteString(v.Identifier)
	b.WriteByte(0)
	b.WriteString(strings.Join(v.Languages, ","))
	return b.String()
}

// Equal reports whether two voices share the same four-tuple identity.
func (v Voice) Equal(other Voice) bool {
	return v.Key() == other.Key()
}

// Less defines the total order voices sort under: the order is the Key's
// lexicographic order, which in turn is (provider, name, identifier,
// languages) — this is also the order the aggregate voices list and a
// provider's own voice set are kept in.
func (v Voice) Less(other Voice) bool {
	return v.Key() < other.Key()
}

// HasLanguage reports whether tag appears verbatim in v.Languages. Matching
// is case-sensitive exact match; see the resolver for tag-suffix reduction.
func (v Voice) HasLanguage(tag string) bool {
	for _, l := range v.Languages {
		if l == tag {
			return true
		}
	}
	return false
}

// truncateFeatures drops any bits above the low 32, per spec's "higher bits
// reserved and must be ignored with a warning" rule. ok is false when bits
// were actually dropped, so the caller can warn exactly once.
func truncateFeatures(raw uint64) (features uint32, ok bool) {
	features = uint32(raw)
	ok = raw>>32 == 0
	return features, ok
}

// NewVoice builds a Voice from a provider's advertised (name, identifier,
// output_format, features, languages) tuple, applying the 32-bit features
// truncation rule. truncated reports whether high bits were dropped, so
// callers can log the once-per-voice warning spec'd in §4.2 step 1.
func NewVoice(providerIdentifier, name, identifier, outputFormat string, rawFeatures uint64, languages []string) (voice Voice, truncated bool) {
	features, ok := truncateFeatures(rawFeatures)
	return Voice{
		Name:               name,
		Identifier:         identifier,
		Languages:          append([]string(nil), languages...),
		Features:           features,
		OutputFormat:       outputFormat,
		ProviderIdentifier: providerIdentifier,
	}, !ok
}
