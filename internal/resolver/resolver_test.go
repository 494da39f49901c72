package resolver

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicebus/voicebus/internal/config"
	"github.com/voicebus/voicebus/internal/model"
)

type staticLookup []model.Voice

func (s staticLookup) Voices() []model.Voice { return s }

type staticConfig struct {
	def      config.Mapping
	haveDef  bool
	mappings map[string]config.Mapping
}

func (c staticConfig) DefaultVoice() (config.Mapping, bool) { return c.def, c.haveDef }
func (c staticConfig) LanguageVoice(tag string) (config.Mapping, bool) {
	m, ok := c.mappings[tag]
	return m, ok
}

func TestResolveExplicitVoiceWins(t *testing.T) {
	voice := model.Voice{ProviderIdentifier: "p", Identifier: "v1"}
	u := model.NewUtterance("u1", "hi")
	u.Voice = &voice

	r := New(staticLookup{}, nil)
	got, err := r.Resolve(u)
	require.NoError(t, err)
	assert.Equal(t, voice, got)
}

func TestResolveLanguageFallback(t *testing.T) {
	// Scenario 3: providers A (fr) and B (en-us, en), no mapping, no
	// default. Utterance language "en" resolves to B1.
	a1 := model.Voice{ProviderIdentifier: "org.a.Speech.Provider", Identifier: "A1", Languages: []string{"fr"}}
	b1 := model.Voice{ProviderIdentifier: "org.b.Speech.Provider", Identifier: "B1", Languages: []string{"en-us", "en"}}

	r := New(staticLookup{a1, b1}, nil)
	u := model.NewUtterance("u1", "hi")
	u.Language = "en"

	got, err := r.Resolve(u)
	require.NoError(t, err)
	assert.Equal(t, b1, got)
}

func TestResolveLanguageMappingSuffixReduction(t *testing.T) {
	// Scenario 4: mapping {"en": (B, B1)}; utterance language "en-GB".
	b1 := model.Voice{ProviderIdentifier: "org.b.Speech.Provider", Identifier: "B1"}
	cfg := staticConfig{mappings: map[string]config.Mapping{
		"en": {ProviderIdentifier: "org.b.Speech.Provider", VoiceIdentifier: "B1"},
	}}

	r := New(staticLookup{b1}, cfg)
	u := model.NewUtterance("u1", "hi")
	u.Language = "en-GB"

	got, err := r.Resolve(u)
	require.NoError(t, err)
	assert.Equal(t, b1, got)
}

func TestResolveConfiguredDefault(t *testing.T) {
	v1 := model.Voice{ProviderIdentifier: "p", Identifier: "v1"}
	other := model.Voice{ProviderIdentifier: "p", Identifier: "v2"}
	cfg := staticConfig{def: config.Mapping{ProviderIdentifier: "p", VoiceIdentifier: "v1"}, haveDef: true}

	r := New(staticLookup{other, v1}, cfg)
	got, err := r.Resolve(model.NewUtterance("u1", "hi"))
	require.NoError(t, err)
	assert.Equal(t, v1, got)
}

func TestResolveNonexistentMappingFallsThrough(t *testing.T) {
	only := model.Voice{ProviderIdentifier: "p", Identifier: "only"}
	cfg := staticConfig{
		mappings: map[string]config.Mapping{"en": {ProviderIdentifier: "p", VoiceIdentifier: "ghost"}},
	}
	r := New(staticLookup{only}, cfg)
	u := model.NewUtterance("u1", "hi")
	u.Language = "en"

	got, err := r.Resolve(u)
	require.NoError(t, err)
	assert.Equal(t, only, got)
}

func TestResolveFirstInAggregateOrder(t *testing.T) {
	first := model.Voice{ProviderIdentifier: "a", Identifier: "1"}
	second := model.Voice{ProviderIdentifier: "b", Identifier: "2"}
	r := New(staticLookup{first, second}, nil)
	got, err := r.Resolve(model.NewUtterance("u1", "hi"))
	require.NoError(t, err)
	assert.Equal(t, first, got)
}

func TestResolveEmptyAggregateErrors(t *testing.T) {
	r := New(staticLookup{}, nil)
	_, err := r.Resolve(model.NewUtterance("u1", "hi"))
	require.Error(t, err)
	var synthErr *model.SynthesisError
	require.True(t, errors.As(err, &synthErr))
	assert.Equal(t, model.ErrorKindNoProvidersAvailable, synthErr.Kind)
}
