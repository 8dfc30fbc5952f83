package sentiment

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApplyAttenuation_SarcasticMultipliesByFixedFactor(t *testing.T) {
	got := ApplyAttenuation(1.0, true, 0, 0.3, false, 0, 0.3)
	require.InDelta(t, 0.6, got, 1e-9)
}

func TestApplyAttenuation_ToxicMultipliesByFixedFactor(t *testing.T) {
	got := ApplyAttenuation(1.0, false, 0, 0.3, true, 0, 0.3)
	require.InDelta(t, 0.75, got, 1e-9)
}

func TestApplyAttenuation_BothCompound(t *testing.T) {
	got := ApplyAttenuation(1.0, true, 0, 0.3, true, 0, 0.3)
	require.InDelta(t, 0.45, got, 1e-9)
}

func TestApplyAttenuation_ConfidenceBasedSarcasmFormula(t *testing.T) {
	// not flagged sarcastic, but confidence 0.5 >= tau 0.3: factor = 1 - 0.4*0.5 = 0.8
	got := ApplyAttenuation(1.0, false, 0.5, 0.3, false, 0, 0.3)
	require.InDelta(t, 0.8, got, 1e-9)
}

func TestApplyAttenuation_ClampedToUnitInterval(t *testing.T) {
	require.Equal(t, 0.0, ApplyAttenuation(-5, false, 0, 0, false, 0, 0))
	require.Equal(t, 1.0, ApplyAttenuation(5, false, 0, 0, false, 0, 0))
}
