package voicebus

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynthesisErrorKindRoundTripsThroughErrorsAs(t *testing.T) {
	err := &SynthesisError{Kind: ErrorKindProviderUnexpectedlyDied}
	var target *SynthesisError
	require.True(t, errors.As(error(err), &target))
	assert.Equal(t, ErrorKindProviderUnexpectedlyDied, target.Kind)
}
