package burden

import "math"

const (
	waitFactorMinMultiplier = 0.5
	waitFactorMaxMultiplier = 2.0
	minEstimateMinutes      = 15.0
	maxEstimateMinutes      = 600.0
)

// EstimateWait projects the remaining wait shown to the patient. baseWait is
// the facility's published average (nil when unknown). A higher multiplier
// shortens the displayed wait; the multiplier is clamped to [0.5, 2] first.
func (c Calibration) EstimateWait(baseWait *float64, multiplier, wait float64) int {
	base := c.DefaultFacilityWaitMinutes
	if baseWait != nil && !math.IsNaN(*baseWait) && *baseWait >= 0 {
		base = *baseWait
	}
	if math.IsNaN(multiplier) {
		multiplier = 1
	}
	factor := 1 / clamp(multiplier, waitFactorMinMultiplier, waitFactorMaxMultiplier)

	minutes := base
	if wait > c.MedianTimeToPhysicianMinutes {
		minutes = math.Max(0, base-wait)
	}
	minutes *= factor
	return int(math.Round(clamp(minutes, minEstimateMinutes, maxEstimateMinutes)))
}
