package calculator

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// distribute splits total into len(weights) parts proportional to weights,
// rounded to places. The last part with a positive weight absorbs the
// rounding remainder, so the parts always sum to total exactly.
// When every weight is zero the parts are equal.
func distribute(total decimal.Decimal, weights []decimal.Decimal, places int32) []decimal.Decimal {
	n := len(weights)
	parts := make([]decimal.Decimal, n)
	if n == 0 {
		return parts
	}

	sum := decimal.Zero
	for _, w := range weights {
		sum = sum.Add(w)
	}
	if sum.IsZero() {
		weights = make([]decimal.Decimal, n)
		for i := range weights {
			weights[i] = decimal.NewFromInt(1)
		}
		sum = decimal.NewFromInt(int64(n))
	}

	absorber := n - 1
	for i := n - 1; i >= 0; i-- {
		if weights[i].IsPositive() {
			absorber = i
			break
		}
	}

	round := func(d decimal.Decimal) decimal.Decimal { return d.Round(places) }
	assigned := fill(parts, total, weights, sum, absorber, round)

	// Rounding up can overshoot a small positive total; truncating cannot.
	if total.IsPositive() && assigned.GreaterThan(total) {
		assigned = fill(parts, total, weights, sum, absorber, func(d decimal.Decimal) decimal.Decimal {
			return d.Truncate(places)
		})
	}

	parts[absorber] = total.Sub(assigned)
	return parts
}

func fill(parts []decimal.Decimal, total decimal.Decimal, weights []decimal.Decimal, sum decimal.Decimal, absorber int, round func(decimal.Decimal) decimal.Decimal) decimal.Decimal {
	assigned := decimal.Zero
	for i, w := range weights {
		if i == absorber {
			continue
		}
		parts[i] = round(total.Mul(w).Div(sum))
		assigned = assigned.Add(parts[i])
	}
	return assigned
}

// absorb rounds parts to places and lets the last positive part take up
// whatever difference remains against total.
func absorb(total decimal.Decimal, parts []decimal.Decimal, places int32) ([]decimal.Decimal, error) {
	out := make([]decimal.Decimal, len(parts))
	if len(parts) == 0 {
		return out, nil
	}
	absorber := len(parts) - 1
	for i := len(parts) - 1; i >= 0; i-- {
		if parts[i].IsPositive() {
			absorber = i
			break
		}
	}
	assigned := decimal.Zero
	for i, p := range parts {
		if i == absorber {
			continue
		}
		out[i] = p.Round(places)
		assigned = assigned.Add(out[i])
	}
	out[absorber] = total.Sub(assigned)
	if out[absorber].IsNegative() {
		return nil, fmt.Errorf("shares exceed %s", total)
	}
	return out, nil
}
