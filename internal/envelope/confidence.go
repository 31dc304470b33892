package envelope

// ScoreToTier converts a score in [0, 1] to a confidence tier.
//
//   - 0.95+ -> high
//   - 0.70-0.94 -> medium
//   - 0.30-0.69 -> low
//   - <0.30 -> speculative
func ScoreToTier(score float64) ConfidenceTier {
	switch {
	case score >= 0.95:
		return TierHigh
	case score >= 0.70:
		return TierMedium
	case score >= 0.30:
		return TierLow
	default:
		return TierSpeculative
	}
}

// AnalysisScore lowers confidence for load problems (0.1 each) and
// unresolved references (0.05 each), bottoming out at 0.3.
func AnalysisScore(loadWarnings, danglingRefs int) float64 {
	score := 1.0 - 0.1*float64(loadWarnings) - 0.05*float64(danglingRefs)
	if score < 0.3 {
		score = 0.3
	}
	return score
}

// BatchScore is the resolved fraction of a batch.
func BatchScore(resolved, total int) float64 {
	if total == 0 {
		return 1.0
	}
	return float64(resolved) / float64(total)
}
