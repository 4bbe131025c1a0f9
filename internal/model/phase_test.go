package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhaseOrderIsStrictlyIncreasing(t *testing.T) {
	for i := 1; i < len(AllPhases); i++ {
		assert.True(t, AllPhases[i-1].Before(AllPhases[i]),
			"%s should come before %s", AllPhases[i-1], AllPhases[i])
	}
	assert.True(t, PhaseFallbackEmails.Before(PhaseDone))
}

func TestParsePhase(t *testing.T) {
	p, err := ParsePhase("websites")
	require.NoError(t, err)
	assert.Equal(t, PhaseWebsites, p)

	_, err = ParsePhase("phase99")
	assert.Error(t, err)
}

func TestUnknownPhaseOrder(t *testing.T) {
	assert.Equal(t, -1, Phase("nope").Order())
}
