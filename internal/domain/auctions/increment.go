package auctions

import "math"

// MinNextBid returns the minimal acceptable next bid given the current
// amount and the room's rules. With no rules the process-wide percent
// fraction applies. Percent increments are at least 1 unit so low-value
// auctions can always advance.
func MinNextBid(currentAmount int64, rules *BidRules, defaultPct float64) int64 {
	if currentAmount < 0 {
		currentAmount = 0
	}
	if rules == nil {
		return currentAmount + percentIncrement(currentAmount, defaultPct)
	}
	if rules.Type == IncrementFixed {
		value := rules.Value
		if value <= 0 {
			value = 1
		}
		return currentAmount + value
	}
	pct := float64(rules.Value) / 100
	if rules.Value <= 0 {
		pct = defaultPct
	}
	return currentAmount + percentIncrement(currentAmount, pct)
}

func percentIncrement(amount int64, pct float64) int64 {
	inc := int64(math.Round(float64(amount) * pct))
	if inc < 1 {
		inc = 1
	}
	return inc
}
