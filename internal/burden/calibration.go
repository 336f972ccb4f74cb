// Package burden implements the wait-burden and disengagement-risk model used
// to rank waiting-room patients. Everything in this package is a pure function
// of its inputs: no clock reads, no randomness, no I/O.
package burden

import (
	"fmt"
	"math"
)

// Flag names an accessibility or vulnerability indicator on a profile.
type Flag string

const (
	FlagChronicPain Flag = "chronic_pain"
	FlagMobility    Flag = "mobility"
	FlagCognitive   Flag = "cognitive"
	FlagSensory     Flag = "sensory"
	FlagLanguage    Flag = "language"
	FlagAlone       Flag = "alone"
)

// Flags lists every profile flag in a stable order.
var Flags = []Flag{FlagChronicPain, FlagMobility, FlagCognitive, FlagSensory, FlagLanguage, FlagAlone}

// Calibration holds every tunable constant of the model. It is a plain value;
// callers load it once (see config.LoadCalibration) and share it freely.
type Calibration struct {
	ProfileWeights map[Flag]float64 `mapstructure:"profile_weights" json:"profile_weights"`

	// MultiplierFloor replaces a vulnerability multiplier that resolves
	// below it, so baseline and equity divisions stay defined.
	MultiplierFloor float64 `mapstructure:"multiplier_floor" json:"multiplier_floor"`

	GridStepMinutes         float64 `mapstructure:"grid_step_minutes" json:"grid_step_minutes"`
	HorizonCapMinutes       float64 `mapstructure:"horizon_cap_minutes" json:"horizon_cap_minutes"`
	HorizonLookaheadMinutes float64 `mapstructure:"horizon_lookahead_minutes" json:"horizon_lookahead_minutes"`

	MedianStayMinutes            float64 `mapstructure:"median_stay_minutes" json:"median_stay_minutes"`
	MedianTimeToPhysicianMinutes float64 `mapstructure:"median_time_to_physician_minutes" json:"median_time_to_physician_minutes"`

	// Post-threshold escalation: linear from EscalationStartMinutes,
	// EscalationPerMinute points per minute, never more than EscalationCap.
	EscalationStartMinutes float64 `mapstructure:"escalation_start_minutes" json:"escalation_start_minutes"`
	EscalationPerMinute    float64 `mapstructure:"escalation_per_minute" json:"escalation_per_minute"`
	EscalationCap          float64 `mapstructure:"escalation_cap" json:"escalation_cap"`

	DefaultFacilityWaitMinutes float64 `mapstructure:"default_facility_wait_minutes" json:"default_facility_wait_minutes"`
	DefaultLeaveSignalWeight   float64 `mapstructure:"default_leave_signal_weight" json:"default_leave_signal_weight"`

	ConfidenceInterval float64 `mapstructure:"confidence_interval" json:"confidence_interval"`
}

// DefaultCalibration returns the calibration table shipped with the service.
func DefaultCalibration() Calibration {
	return Calibration{
		ProfileWeights: map[Flag]float64{
			FlagChronicPain: 1.4,
			FlagMobility:    1.6,
			FlagCognitive:   1.3,
			FlagSensory:     1.5,
			FlagLanguage:    1.2,
			FlagAlone:       1.1,
		},
		MultiplierFloor:              0.01,
		GridStepMinutes:              5,
		HorizonCapMinutes:            180,
		HorizonLookaheadMinutes:      60,
		MedianStayMinutes:            238,
		MedianTimeToPhysicianMinutes: 90,
		EscalationStartMinutes:       87,
		EscalationPerMinute:          0.1,
		EscalationCap:                10,
		DefaultFacilityWaitMinutes:   180,
		DefaultLeaveSignalWeight:     1.0,
		ConfidenceInterval:           0.95,
	}
}

// Validate reports the first constant that would make the model misbehave.
func (c Calibration) Validate() error {
	for _, f := range Flags {
		w, ok := c.ProfileWeights[f]
		if !ok {
			return fmt.Errorf("calibration: missing weight for %s", f)
		}
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return fmt.Errorf("calibration: weight for %s must be a non-negative number, got %v", f, w)
		}
	}
	for f := range c.ProfileWeights {
		if !f.known() {
			return fmt.Errorf("calibration: unknown profile flag %q", f)
		}
	}
	if !(c.MultiplierFloor > 0) {
		return fmt.Errorf("calibration: multiplier_floor must be positive")
	}
	if !(c.GridStepMinutes > 0) {
		return fmt.Errorf("calibration: grid_step_minutes must be positive")
	}
	if !(c.HorizonLookaheadMinutes > 0) {
		return fmt.Errorf("calibration: horizon_lookahead_minutes must be positive")
	}
	if !(c.HorizonCapMinutes >= c.GridStepMinutes) {
		return fmt.Errorf("calibration: horizon_cap_minutes (%v) is below grid_step_minutes (%v)",
			c.HorizonCapMinutes, c.GridStepMinutes)
	}
	if c.HorizonCapMinutes < c.HorizonLookaheadMinutes {
		return fmt.Errorf("calibration: horizon_cap_minutes (%v) is below horizon_lookahead_minutes (%v)",
			c.HorizonCapMinutes, c.HorizonLookaheadMinutes)
	}
	if !(c.MedianStayMinutes > 0) {
		return fmt.Errorf("calibration: median_stay_minutes must be positive")
	}
	if c.EscalationPerMinute < 0 || c.EscalationCap < 0 {
		return fmt.Errorf("calibration: escalation slope and cap must be non-negative")
	}
	if c.DefaultLeaveSignalWeight < 0 {
		return fmt.Errorf("calibration: default_leave_signal_weight must be non-negative")
	}
	return nil
}

func (f Flag) known() bool {
	for _, k := range Flags {
		if f == k {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
