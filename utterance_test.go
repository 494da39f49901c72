package voicebus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewUtteranceAssignsDefaultsAndUniqueID(t *testing.T) {
	a := NewUtterance("hello")
	b := NewUtterance("hello")

	assert.Equal(t, "hello", a.Text)
	assert.Equal(t, DefaultPitch, a.Pitch)
	assert.Equal(t, DefaultRate, a.Rate)
	assert.Equal(t, DefaultVolume, a.Volume)
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
}
