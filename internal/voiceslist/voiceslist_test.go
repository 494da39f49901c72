package voiceslist

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/voicebus/voicebus/internal/model"
)

func TestAggregateOrderingLaw(t *testing.T) {
	m := New()
	m.SetProviderVoices("org.b.Speech.Provider", []model.Voice{{ProviderIdentifier: "org.b.Speech.Provider", Identifier: "b1"}})
	m.SetProviderVoices("org.a.Speech.Provider", []model.Voice{{ProviderIdentifier: "org.a.Speech.Provider", Identifier: "a1"}, {ProviderIdentifier: "org.a.Speech.Provider", Identifier: "a2"}})

	voices := m.Voices()
	ids := make([]string, len(voices))
	for i, v := range voices {
		ids[i] = v.Identifier
	}
	assert.Equal(t, []string{"a1", "a2", "b1"}, ids)
}

func TestEmptyProviderContributesNothing(t *testing.T) {
	m := New()
	m.SetProviderVoices("org.empty.Speech.Provider", nil)
	assert.Empty(t, m.Voices())
}

func TestRemoveProviderDropsItsVoices(t *testing.T) {
	m := New()
	m.SetProviderVoices("org.a.Speech.Provider", []model.Voice{{Identifier: "a1"}})
	m.RemoveProvider("org.a.Speech.Provider")
	assert.Empty(t, m.Voices())
}

func TestSubscribeNotifiedOnChange(t *testing.T) {
	m := New()
	calls := 0
	unsub := m.Subscribe(func() { calls++ })
	m.SetProviderVoices("org.a.Speech.Provider", []model.Voice{{Identifier: "a1"}})
	assert.Equal(t, 1, calls)
	unsub()
	m.SetProviderVoices("org.a.Speech.Provider", nil)
	assert.Equal(t, 1, calls)
}
