package config

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// keys this source reads, matching spec §6.3's two configuration keys.
const (
	keyDefaultVoice  = "default-voice"
	keyLanguageVoice = "language-voice-mapping"
)

// ViperSource loads the voice-resolution store from a config file via
// spf13/viper and keeps it live-reloaded for the life of the process.
type ViperSource struct {
	v *viper.Viper

	mu              sync.RWMutex
	defaultVoice    Mapping
	haveDefault     bool
	languageMapping map[string]Mapping
}

// NewViperSource loads path (any format viper supports: yaml, toml, json)
// and watches it for changes. A missing file is not an error: it is
// treated as "no default / empty mapping", per Design Notes. A missing
// file is not watched, so one created later is not picked up.
func NewViperSource(path string) (*ViperSource, error) {
	v := viper.New()
	v.SetConfigFile(path)

	s := &ViperSource{v: v, languageMapping: make(map[string]Mapping)}

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); notFound || errors.Is(err, os.ErrNotExist) {
			logrus.WithField("path", path).Debug("voice-resolution config not found, using empty mapping")
			return s, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	s.reload()

	v.OnConfigChange(func(_ fsnotify.Event) {
		logrus.WithField("path", path).Info("voice-resolution config changed, reloading")
		s.reload()
	})
	v.WatchConfig()

	return s, nil
}

func (s *ViperSource) reload() {
	type pair struct {
		Provider string `mapstructure:"provider"`
		Voice    string `mapstructure:"voice"`
	}

	var def *pair
	if err := s.v.UnmarshalKey(keyDefaultVoice, &def); err != nil {
		logrus.WithError(err).Warn("config: malformed default-voice, ignoring")
		def = nil
	}

	var mapping map[string]pair
	if err := s.v.UnmarshalKey(keyLanguageVoice, &mapping); err != nil {
		logrus.WithError(err).Warn("config: malformed language-voice-mapping, ignoring")
		mapping = nil
	}

	langs := make(map[string]Mapping, len(mapping))
	for tag, p := range mapping {
		langs[tag] = Mapping{ProviderIdentifier: p.Provider, VoiceIdentifier: p.Voice}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if def != nil && def.Provider != "" && def.Voice != "" {
		s.defaultVoice = Mapping{ProviderIdentifier: def.Provider, VoiceIdentifier: def.Voice}
		s.haveDefault = true
	} else {
		s.haveDefault = false
	}
	s.languageMapping = langs
}

func (s *ViperSource) DefaultVoice() (Mapping, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaultVoice, s.haveDefault
}

func (s *ViperSource) LanguageVoice(tag string) (Mapping, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.languageMapping[tag]
	return m, ok
}

var _ Source = (*ViperSource)(nil)
