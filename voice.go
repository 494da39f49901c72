package voicebus

import "github.com/voicebus/voicebus/internal/model"

// Voice is an immutable description of one synthesis profile offered by a
// provider (spec §3). Equality, hashing and ordering derive from
// (provider identifier, name, identifier, languages); OutputFormat is
// excluded.
type Voice = model.Voice

// OutputFormat is a parsed output_format media-type string (spec §6.2),
// delivered to an AudioSink alongside each PCM buffer.
type OutputFormat = model.OutputFormat

// Recognized OutputFormat.MediaType top-level values.
const (
	MediaTypeRaw   = model.MediaTypeRaw
	MediaTypeSpiel = model.MediaTypeSpiel
)

// ParseOutputFormat parses the media-type grammar used by providers'
// output_format strings (spec §6.2).
func ParseOutputFormat(s string) (OutputFormat, error) {
	return model.ParseOutputFormat(s)
}
