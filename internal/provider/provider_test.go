package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMarkActivatableUpgradesFlag(t *testing.T) {
	p := &Provider{identifier: "org.example.Speech.Provider"}
	assert.False(t, p.IsActivatable())

	p.MarkActivatable()
	assert.True(t, p.IsActivatable())
}

func TestMarkActivatableNeverDowngrades(t *testing.T) {
	p := &Provider{identifier: "org.example.Speech.Provider", isActivatable: true}
	p.MarkActivatable()
	assert.True(t, p.IsActivatable())
}
