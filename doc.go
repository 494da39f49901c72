// Package voicebus is a client-side speech-synthesis orchestration
// library. An application submits Utterance values to a Speaker and
// receives synthesized audio via an AudioSink, while voicebus abstracts
// over a dynamic population of out-of-process speech provider services
// discovered on the session message bus.
//
// A Speaker owns a process-wide ProviderRegistry handle, a FIFO queue of
// utterances, and the playback pipeline that drains it. Voice selection
// follows the rule ladder in VoiceResolver: an explicit Utterance.Voice,
// a configured language mapping, a configured default, a language match
// against the aggregate voices list, or simply the first available voice.
//
// Synthesis itself, the bus transport, audio hardware rendering, and a
// command-line front-end are out of scope; this package only orchestrates
// providers that implement those concerns.
package voicebus
