package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicebus/voicebus/internal/model"
)

func v(provider, id string, langs ...string) model.Voice {
	return model.Voice{ProviderIdentifier: provider, Name: id, Identifier: id, Languages: langs}
}

func TestDiffVoicesInitialInsertAll(t *testing.T) {
	next := []model.Voice{v("p", "b"), v("p", "a")}
	working, set, deltas := diffVoices(nil, map[string]struct{}{}, next)
	require.Len(t, working, 2)
	assert.Equal(t, "a", working[0].Identifier)
	assert.Equal(t, "b", working[1].Identifier)
	assert.Len(t, set, 2)
	assert.Len(t, deltas, 2)
	for _, d := range deltas {
		assert.Empty(t, d.Removed)
		assert.Len(t, d.Added, 1)
	}
}

func TestDiffVoicesRemovalAndInsertion(t *testing.T) {
	current := []model.Voice{v("p", "a"), v("p", "b"), v("p", "c")}
	set := map[string]struct{}{}
	for _, voice := range current {
		set[voice.Key()] = struct{}{}
	}

	next := []model.Voice{v("p", "a"), v("p", "d")} // drop b, c; add d

	working, newSet, deltas := diffVoices(current, set, next)
	ids := make([]string, len(working))
	for i, voice := range working {
		ids[i] = voice.Identifier
	}
	assert.ElementsMatch(t, []string{"a", "d"}, ids)
	assert.Len(t, newSet, 2)
	assert.NotEmpty(t, deltas)

	var removed, added int
	for _, d := range deltas {
		removed += d.Removed
		added += len(d.Added)
	}
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, added)
}

func TestDiffVoicesNoChangeProducesNoDeltas(t *testing.T) {
	current := []model.Voice{v("p", "a"), v("p", "b")}
	set := map[string]struct{}{current[0].Key(): {}, current[1].Key(): {}}

	_, _, deltas := diffVoices(current, set, current)
	assert.Empty(t, deltas)
}
