package risk

import "math"

// PlannedRisk computes the account-currency loss if the stop is hit.
// lots are converted to units with contractSize (100000 for FX lots).
func PlannedRisk(lots, contractSize, entry, stop, quoteToAccountRate float64) float64 {
	move := math.Abs(entry - stop)
	return lots * contractSize * move * quoteToAccountRate
}

// RR is the reward:risk multiple of a level pair.
func RR(entry, stop, takeProfit float64) float64 {
	risk := math.Abs(entry - stop)
	reward := math.Abs(takeProfit - entry)
	if risk == 0 {
		return 0
	}
	return reward / risk
}

// RiskPct returns planned risk as a percent of equity.
func RiskPct(plannedRisk, equity float64) float64 {
	if equity <= 0 {
		return math.Inf(1)
	}
	return 100 * plannedRisk / equity
}
