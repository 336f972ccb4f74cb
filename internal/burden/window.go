package burden

import "math"

const (
	disengagementThreshold   = 0.5
	disengagementEvalBurden  = 50.0
	disengagementMinMinutes  = 5.0
	disengagementMaxMinutes  = 60.0
	disengagementDefaultMins = 20
)

// DisengagementWindow returns the minutes from now until the LWBS curve first
// reaches 0.5. A crossing already behind the patient yields the 5 minute
// floor; no crossing inside the horizon yields 20.
func DisengagementWindow(curve []CurvePoint, wait float64) int {
	for _, p := range curve {
		if p.LWBSProbability < disengagementThreshold {
			continue
		}
		minutes := p.TimeMinutes - wait
		if minutes <= 0 {
			return int(disengagementMinMinutes)
		}
		return int(math.Round(clamp(minutes, disengagementMinMinutes, disengagementMaxMinutes)))
	}
	return disengagementDefaultMins
}

// EquityGap is the part of the terminal LWBS probability attributable to the
// vulnerability multiplier. multiplier must already be floored.
func EquityGap(last CurvePoint, multiplier float64) float64 {
	baseline := last.LWBSProbability / multiplier
	return last.LWBSProbability - baseline
}
