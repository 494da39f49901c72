package voicebus

import "github.com/voicebus/voicebus/internal/provider"

// Provider is a live object representing one bus peer offering synthesis
// voices (spec §3). Obtain instances from Speaker.Providers.
type Provider = provider.Provider
