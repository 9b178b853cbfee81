// Package estimate turns a method's min/max duration bounds into a single
// number of minutes.
package estimate

import (
	"github.com/shopspring/decimal"

	"github.com/SmartXchain/piedmont-sub000/internal/domain"
)

// MinMinutes is the shortest duration ever assigned to a step.
const MinMinutes = 1

// Strategy selects how a min/max pair collapses to one value.
type Strategy int

const (
	// Mean averages both bounds; used for the committed plan.
	Mean Strategy = iota
	// Max takes the upper bound; used for the conservative live view.
	Max
)

var two = decimal.NewFromInt(2)

// Aggregate collapses a bound pair. Under Mean a single present bound is used
// as is; under Max only the upper bound counts. Missing bounds yield zero.
func Aggregate(lo, hi decimal.NullDecimal, s Strategy) decimal.Decimal {
	if s == Max {
		if hi.Valid {
			return hi.Decimal
		}
		return decimal.Zero
	}
	switch {
	case lo.Valid && hi.Valid:
		return lo.Decimal.Add(hi.Decimal).Div(two)
	case hi.Valid:
		return hi.Decimal
	case lo.Valid:
		return lo.Decimal
	}
	return decimal.Zero
}

// Minutes rounds to the nearest whole minute, half away from zero.
func Minutes(d decimal.Decimal) int {
	return int(d.Round(0).IntPart())
}

// StepMinutes is touch plus run for the method under the strategy, never
// below MinMinutes. A step without a method gets MinMinutes.
func StepMinutes(m *domain.Method, s Strategy) int {
	if m == nil {
		return MinMinutes
	}
	touch := Minutes(Aggregate(m.TouchMin, m.TouchMax, s))
	run := Minutes(Aggregate(m.RunMin, m.RunMax, s))
	return clamp(touch + run)
}

// clamp raises non-positive estimates to MinMinutes.
func clamp(minutes int) int {
	if minutes < MinMinutes {
		return MinMinutes
	}
	return minutes
}
