package health

import "fmt"

// Thresholds are the tunable limits and weights of the analyzer.
type Thresholds struct {
	// MaxVariables is the variable count above which ExcessiveVariables is raised.
	MaxVariables int `json:"maxVariables" mapstructure:"maxVariables"`
	// CriticalVariables raises ExcessiveVariables to high severity.
	CriticalVariables int `json:"criticalVariables" mapstructure:"criticalVariables"`
	// MaxDepth is the nesting depth above which DeepHierarchy is raised.
	MaxDepth int `json:"maxDepth" mapstructure:"maxDepth"`
	// ParticipationThreshold is the minimum fraction of resources that must
	// share data or control inputs for communicational, procedural or logical
	// cohesion.
	ParticipationThreshold float64 `json:"participationThreshold" mapstructure:"participationThreshold"`

	PenaltyHigh   int `json:"penaltyHigh" mapstructure:"penaltyHigh"`
	PenaltyMedium int `json:"penaltyMedium" mapstructure:"penaltyMedium"`
	PenaltyLow    int `json:"penaltyLow" mapstructure:"penaltyLow"`

	// Coupling penalties are scaled by coupling strength.
	ControlCouplingPenalty float64 `json:"controlCouplingPenalty" mapstructure:"controlCouplingPenalty"`
	CommonCouplingPenalty  float64 `json:"commonCouplingPenalty" mapstructure:"commonCouplingPenalty"`
	ContentCouplingPenalty float64 `json:"contentCouplingPenalty" mapstructure:"contentCouplingPenalty"`
}

// DefaultThresholds returns the documented defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MaxVariables:           20,
		CriticalVariables:      50,
		MaxDepth:               3,
		ParticipationThreshold: 0.5,
		PenaltyHigh:            20,
		PenaltyMedium:          10,
		PenaltyLow:             5,
		ControlCouplingPenalty: 10,
		CommonCouplingPenalty:  15,
		ContentCouplingPenalty: 20,
	}
}

// Validate rejects nonsensical values.
func (t Thresholds) Validate() error {
	if t.MaxVariables < 1 {
		return fmt.Errorf("maxVariables must be positive, got %d", t.MaxVariables)
	}
	if t.CriticalVariables <= t.MaxVariables {
		return fmt.Errorf("criticalVariables (%d) must exceed maxVariables (%d)", t.CriticalVariables, t.MaxVariables)
	}
	if t.MaxDepth < 1 {
		return fmt.Errorf("maxDepth must be positive, got %d", t.MaxDepth)
	}
	if t.ParticipationThreshold <= 0 || t.ParticipationThreshold > 1 {
		return fmt.Errorf("participationThreshold must be in (0, 1], got %g", t.ParticipationThreshold)
	}
	for name, v := range map[string]int{"penaltyHigh": t.PenaltyHigh, "penaltyMedium": t.PenaltyMedium, "penaltyLow": t.PenaltyLow} {
		if v < 0 {
			return fmt.Errorf("%s must not be negative, got %d", name, v)
		}
	}
	for name, v := range map[string]float64{
		"controlCouplingPenalty": t.ControlCouplingPenalty,
		"commonCouplingPenalty":  t.CommonCouplingPenalty,
		"contentCouplingPenalty": t.ContentCouplingPenalty,
	} {
		if v < 0 {
			return fmt.Errorf("%s must not be negative, got %g", name, v)
		}
	}
	return nil
}

func (t Thresholds) penalty(s Severity) int {
	switch s {
	case High:
		return t.PenaltyHigh
	case Medium:
		return t.PenaltyMedium
	}
	return t.PenaltyLow
}

func (t Thresholds) couplingPenalty(c Coupling) float64 {
	switch c {
	case Control:
		return t.ControlCouplingPenalty
	case Common:
		return t.CommonCouplingPenalty
	case Content:
		return t.ContentCouplingPenalty
	}
	return 0
}
