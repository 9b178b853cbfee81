package estimate_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/SmartXchain/piedmont-sub000/internal/domain"
	"github.com/SmartXchain/piedmont-sub000/internal/estimate"
)

func nd(v string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(v))
}

func TestAggregateMean(t *testing.T) {
	none := decimal.NullDecimal{}
	cases := []struct {
		name   string
		lo, hi decimal.NullDecimal
		want   string
	}{
		{"both", nd("10"), nd("20"), "15"},
		{"only min", nd("12"), none, "12"},
		{"only max", none, nd("7"), "7"},
		{"neither", none, none, "0"},
	}
	for _, tc := range cases {
		got := estimate.Aggregate(tc.lo, tc.hi, estimate.Mean)
		if !got.Equal(decimal.RequireFromString(tc.want)) {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, got)
		}
	}
}

func TestAggregateMaxIgnoresMin(t *testing.T) {
	if got := estimate.Aggregate(nd("10"), nd("20"), estimate.Max); !got.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("expected 20, got %s", got)
	}
	if got := estimate.Aggregate(nd("10"), decimal.NullDecimal{}, estimate.Max); !got.IsZero() {
		t.Fatalf("expected 0 without max bound, got %s", got)
	}
}

func TestMinutesRoundsHalfAwayFromZero(t *testing.T) {
	if got := estimate.Minutes(decimal.RequireFromString("12.5")); got != 13 {
		t.Fatalf("expected 13, got %d", got)
	}
	if got := estimate.Minutes(decimal.RequireFromString("12.49")); got != 12 {
		t.Fatalf("expected 12, got %d", got)
	}
}

func TestStepMinutesMeanVersusMax(t *testing.T) {
	m := &domain.Method{TouchMin: nd("10"), TouchMax: nd("20"), RunMin: nd("0"), RunMax: nd("0")}
	if got := estimate.StepMinutes(m, estimate.Mean); got != 15 {
		t.Fatalf("mean: expected 15, got %d", got)
	}
	if got := estimate.StepMinutes(m, estimate.Max); got != 20 {
		t.Fatalf("max: expected 20, got %d", got)
	}
}

func TestStepMinutesClampsToOneMinute(t *testing.T) {
	if got := estimate.StepMinutes(&domain.Method{}, estimate.Mean); got != 1 {
		t.Fatalf("empty method: expected 1, got %d", got)
	}
	if got := estimate.StepMinutes(nil, estimate.Max); got != 1 {
		t.Fatalf("nil method: expected 1, got %d", got)
	}
	neg := &domain.Method{TouchMin: nd("-5"), TouchMax: nd("-5")}
	if got := estimate.StepMinutes(neg, estimate.Mean); got != 1 {
		t.Fatalf("negative estimate: expected 1, got %d", got)
	}
}

func TestStepMinutesRoundsEachComponent(t *testing.T) {
	m := &domain.Method{TouchMin: nd("12"), TouchMax: nd("13"), RunMin: nd("12"), RunMax: nd("13")}
	// 12.5 -> 13 twice
	if got := estimate.StepMinutes(m, estimate.Mean); got != 26 {
		t.Fatalf("expected 26, got %d", got)
	}
}
