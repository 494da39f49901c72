package provider

import (
	"sort"

	"github.com/voicebus/voicebus/internal/model"
)

// VoiceDelta is a single contiguous list-model edit: Removed items at
// Position were replaced by Added (either may be empty, never both).
type VoiceDelta struct {
	Position int
	Removed  int
	Added    []model.Voice
}

// diffVoices computes the edits needed to turn (current, currentSet) into
// next, preferring a sequence of minimal single-position splices over a
// full reload, per the Design Notes' "diff-by-set" guidance. It returns the
// new sorted slice, its key set, and the ordered list of deltas a list-model
// observer should be told about.
func diffVoices(current []model.Voice, currentSet map[string]struct{}, next []model.Voice) ([]model.Voice, map[string]struct{}, []VoiceDelta) {
	nextSorted := append([]model.Voice(nil), next...)
	sort.Slice(nextSorted, func(i, j int) bool { return nextSorted[i].Less(nextSorted[j]) })

	nextSet := make(map[string]struct{}, len(nextSorted))
	for _, v := range nextSorted {
		nextSet[v.Key()] = struct{}{}
	}

	working := append([]model.Voice(nil), current...)
	var deltas []VoiceDelta

	// Pass 1: remove voices absent from next, back to front so earlier
	// positions stay valid as we splice.
	for i := len(working) - 1; i >= 0; i-- {
		if _, keep := nextSet[working[i].Key()]; keep {
			continue
		}
		working = append(working[:i], working[i+1:]...)
		deltas = append(deltas, VoiceDelta{Position: i, Removed: 1})
	}

	// Pass 2: insert voices new to next, binary-search for each insertion
	// point in the list as it stands after the removals above.
	for _, v := range nextSorted {
		if _, existed := currentSet[v.Key()]; existed {
			continue
		}
		pos := sort.Search(len(working), func(i int) bool { return !working[i].Less(v) })
		working = append(working, model.Voice{})
		copy(working[pos+1:], working[pos:])
		working[pos] = v
		deltas = append(deltas, VoiceDelta{Position: pos, Added: []model.Voice{v}})
	}

	return working, nextSet, deltas
}
