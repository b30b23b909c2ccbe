package diagnosis

import (
	"github.com/aretw0/rootcause/pkg/domain"
)

// Thresholds are the session variables read by the rules.
type Thresholds struct {
	// Baseline is the duration in milliseconds under which a trace is not diagnosed.
	Baseline float64 `mapstructure:"baseline"`
	// GlobalContextShare is the part of the trace duration a global context holds.
	GlobalContextShare float64 `mapstructure:"global_context_share"`
	// TimeWastingShare is the part of the global context the operations cover.
	TimeWastingShare float64 `mapstructure:"time_wasting_share"`
	// ProblemContextShare is the part of an operation a problem context subsumes.
	ProblemContextShare float64 `mapstructure:"problem_context_share"`
	// RootCauseShare is the part of a problem context the root cause calls cover.
	RootCauseShare float64 `mapstructure:"root_cause_share"`
}

// DefaultThresholds returns the thresholds used for unset variables.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Baseline:            1000,
		GlobalContextShare:  0.8,
		TimeWastingShare:    0.8,
		ProblemContextShare: 0.8,
		RootCauseShare:      0.8,
	}
}

// DefaultVariables returns DefaultThresholds as session variables.
func DefaultVariables() domain.SessionVariables {
	t := DefaultThresholds()
	return domain.SessionVariables{
		"baseline":              t.Baseline,
		"global_context_share":  t.GlobalContextShare,
		"time_wasting_share":    t.TimeWastingShare,
		"problem_context_share": t.ProblemContextShare,
		"root_cause_share":      t.RootCauseShare,
	}
}

// thresholds decodes the variables over the defaults.
func thresholds(vars domain.SessionVariables) (Thresholds, error) {
	t := DefaultThresholds()
	if err := vars.DecodeAll(&t); err != nil {
		return Thresholds{}, err
	}
	return t, nil
}
