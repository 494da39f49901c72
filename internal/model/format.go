package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Media-type top-level types recognized by the wire protocol (§6.2).
const (
	MediaTypeRaw   = "audio/x-raw"
	MediaTypeSpiel = "audio/x-spiel"
)

// OutputFormat is a parsed `output_format` media-type string, e.g.
// "audio/x-raw; format=S16LE, channels=1, rate=22050".
type OutputFormat struct {
	MediaType string
	PCMFormat string
	Channels  int
	Rate      int
}

// Framed reports whether this format's payloads are wrapped in the §6.2
// audio/event chunk framing (audio/x-spiel), as opposed to being pure PCM
// (audio/x-raw).
func (f OutputFormat) Framed() bool {
	return f.MediaType == MediaTypeSpiel
}

// Usable reports whether the format is one this library knows how to
// consume at all. Anything else resolves to a MisconfiguredVoice error.
func (f OutputFormat) Usable() bool {
	return (f.MediaType == MediaTypeRaw || f.MediaType == MediaTypeSpiel) &&
		f.PCMFormat != "" && f.Channels > 0 && f.Rate > 0
}

// ParseOutputFormat parses the comma-separated parameter grammar used by
// providers' `output_format` strings. This is not RFC 2045 media-type
// syntax (parameters are comma- not semicolon-separated after the first
// ';'), so mime.ParseMediaType cannot be reused here; this hand-rolled
// parser follows the exact grammar spec'd in §6.2.
func ParseOutputFormat(s string) (OutputFormat, error) {
	mediaType, rest, _ := strings.Cut(s, ";")
	mediaType = strings.TrimSpace(mediaType)
	if mediaType == "" {
		return OutputFormat{}, fmt.Errorf("model: empty media type in output_format %q", s)
	}

	f := OutputFormat{MediaType: mediaType}
	if rest == "" {
		return f, nil
	}

	for _, part := range strings.Split(rest, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, found := strings.Cut(part, "=")
		if !found {
			return OutputFormat{}, fmt.Errorf("model: malformed parameter %q in output_format %q", part, s)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		switch key {
		case "format":
			f.PCMFormat = value
		case "channels":
			n, err := strconv.Atoi(value)
			if err != nil {
				return OutputFormat{}, fmt.Errorf("model: invalid channels %q in output_format %q: %w", value, s, err)
			}
			f.Channels = n
		case "rate":
			n, err := strconv.Atoi(value)
			if err != nil {
				return OutputFormat{}, fmt.Errorf("model: invalid rate %q in output_format %q: %w", value, s, err)
			}
			f.Rate = n
		}
	}
	return f, nil
}
