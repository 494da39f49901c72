package voicebus

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// AudioSink receives decoded PCM buffers ready for playback, in order,
// for the duration of one utterance. format describes the PCM layout per
// the resolved voice's output_format (spec §6.2); it does not change
// within a single utterance. Rendering to an audio device is outside this
// library's scope (spec §1); the host application supplies the sink.
type AudioSink interface {
	WriteAudio(format OutputFormat, pcm []byte) error
}

// sinkAdapter applies an utterance's volume before handing PCM to the
// caller-supplied AudioSink. Volume scaling is only implemented for the
// S16LE sample format, the common case for speech providers; other PCM
// formats pass through unscaled, with a once-per-format warning, since
// volume control beyond that is the external audio pipeline's job per
// spec §1.
type sinkAdapter struct {
	sink   AudioSink
	format OutputFormat
	volume float64
}

func (s *sinkAdapter) WriteAudio(pcm []byte) error {
	out := pcm
	if s.volume != DefaultVolume && len(pcm) > 0 {
		if s.format.PCMFormat != "S16LE" {
			warnUnscalableFormatOnce(s.format.PCMFormat)
		} else if scaled, ok := scaleS16LE(pcm, s.volume); ok {
			out = scaled
		} else {
			warnUnscalableFormatOnce(s.format.PCMFormat)
		}
	}
	return s.sink.WriteAudio(s.format, out)
}

// scaleS16LE scales little-endian signed 16-bit PCM samples by volume,
// clamping to the int16 range. ok is false for an odd-length buffer; the
// caller is responsible for only passing S16LE data.
func scaleS16LE(pcm []byte, volume float64) (out []byte, ok bool) {
	if len(pcm)%2 != 0 {
		return nil, false
	}
	out = make([]byte, len(pcm))
	for i := 0; i < len(pcm); i += 2 {
		sample := int16(uint16(pcm[i]) | uint16(pcm[i+1])<<8)
		scaled := float64(sample) * volume
		switch {
		case scaled > 32767:
			scaled = 32767
		case scaled < -32768:
			scaled = -32768
		}
		v := uint16(int16(scaled))
		out[i] = byte(v)
		out[i+1] = byte(v >> 8)
	}
	return out, true
}

var warnedFormats sync.Map

func warnUnscalableFormatOnce(pcmFormat string) {
	if _, already := warnedFormats.LoadOrStore(pcmFormat, struct{}{}); already {
		return
	}
	logrus.WithField("pcm_format", pcmFormat).Warn("voicebus: volume scaling unsupported for this PCM format, passing through unscaled")
}
