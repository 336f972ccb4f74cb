package burden

import "math"

// Profile is the set of accessibility flags reported for a patient.
type Profile struct {
	ChronicPain bool `json:"chronic_pain"`
	Mobility    bool `json:"mobility"`
	Cognitive   bool `json:"cognitive"`
	Sensory     bool `json:"sensory"`
	Language    bool `json:"language"`
	Alone       bool `json:"alone"`
}

// Set returns the flags that are true, in Flags order.
func (p Profile) Set() []Flag {
	var out []Flag
	for _, f := range Flags {
		if p.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

// Has reports whether flag f is set.
func (p Profile) Has(f Flag) bool {
	switch f {
	case FlagChronicPain:
		return p.ChronicPain
	case FlagMobility:
		return p.Mobility
	case FlagCognitive:
		return p.Cognitive
	case FlagSensory:
		return p.Sensory
	case FlagLanguage:
		return p.Language
	case FlagAlone:
		return p.Alone
	}
	return false
}

type vulnerabilityKind uint8

const (
	vulnerabilityUnset vulnerabilityKind = iota
	vulnerabilityExplicit
	vulnerabilityProfile
)

// Vulnerability is either an explicit multiplier or a profile to be scored.
// The zero value means neither was supplied.
type Vulnerability struct {
	kind       vulnerabilityKind
	multiplier float64
	profile    Profile
}

// FromMultiplier wraps an explicit, caller-computed multiplier.
func FromMultiplier(m float64) Vulnerability {
	return Vulnerability{kind: vulnerabilityExplicit, multiplier: m}
}

// FromProfile wraps a profile that is scored with the calibration weights.
func FromProfile(p Profile) Vulnerability {
	return Vulnerability{kind: vulnerabilityProfile, profile: p}
}

// Profile returns the wrapped profile, if this is the profile case.
func (v Vulnerability) Profile() (Profile, bool) {
	return v.profile, v.kind == vulnerabilityProfile
}

// Explicit returns the wrapped multiplier, if this is the explicit case.
func (v Vulnerability) Explicit() (float64, bool) {
	return v.multiplier, v.kind == vulnerabilityExplicit
}

// Multiplier resolves v to a raw, non-negative multiplier. Unset resolves to
// 1.0, an explicit multiplier is returned as-is and a profile is scored with
// AdditiveProfileMultiplier.
func (c Calibration) Multiplier(v Vulnerability) float64 {
	switch v.kind {
	case vulnerabilityExplicit:
		return math.Max(0, v.multiplier)
	case vulnerabilityProfile:
		return c.AdditiveProfileMultiplier(v.profile)
	}
	return 1.0
}

// AdditiveProfileMultiplier sums the calibration weight of every set flag.
// An all-false profile scores 0.
func (c Calibration) AdditiveProfileMultiplier(p Profile) float64 {
	var sum float64
	for _, f := range p.Set() {
		sum += c.ProfileWeights[f]
	}
	return math.Max(0, sum)
}

// EffectiveMultiplier resolves v and applies the degenerate-multiplier floor.
// floored is true when the raw value was below MultiplierFloor.
func (c Calibration) EffectiveMultiplier(v Vulnerability) (m float64, floored bool) {
	m = c.Multiplier(v)
	if math.IsNaN(m) || m < c.MultiplierFloor {
		return c.MultiplierFloor, true
	}
	return m, false
}
