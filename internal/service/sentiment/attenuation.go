package sentiment

// ApplyAttenuation applies sentiment attenuation,
// when the linker materializes a Mention row from a comment's per-mention
// result. magnitude is the unadjusted NormalizedSentiment.Score; the
// returned value is clamped to [0,1].
func ApplyAttenuation(magnitude float64, isSarcastic bool, sarcasmConfidence, tauSarcasm float64, isToxic bool, toxicConfidence, tauToxic float64) float64 {
	switch {
	case isSarcastic:
		magnitude *= 0.6
	case tauSarcasm > 0 && sarcasmConfidence >= tauSarcasm:
		factor := 1 - 0.4*min1(sarcasmConfidence)
		if factor < 0 {
			factor = 0
		}
		magnitude *= factor
	}

	switch {
	case isToxic:
		magnitude *= 0.75
	case tauToxic > 0 && toxicConfidence >= tauToxic:
		factor := 1 - 0.25*min1(toxicConfidence)
		if factor < 0 {
			factor = 0
		}
		magnitude *= factor
	}

	if magnitude < 0 {
		return 0
	}
	if magnitude > 1 {
		return 1
	}
	return magnitude
}

func min1(v float64) float64 {
	if v > 1 {
		return 1
	}
	return v
}
