package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

// RiskProfile maps named risk modes to leverage multipliers and clamps any
// leverage — table-resolved or explicit override — to the configured range.
// It is a pure lookup built once from configuration.
type RiskProfile struct {
	modes map[string]decimal.Decimal
	min   decimal.Decimal
	max   decimal.Decimal
}

// NewRiskProfile builds a profile from a mode→leverage table and an
// inclusive [min, max] leverage bound.
func NewRiskProfile(modes map[string]float64, min, max float64) *RiskProfile {
	table := make(map[string]decimal.Decimal, len(modes))
	for name, lev := range modes {
		table[name] = decimal.NewFromFloat(lev)
	}
	return &RiskProfile{
		modes: table,
		min:   decimal.NewFromFloat(min),
		max:   decimal.NewFromFloat(max),
	}
}

// LeverageFor resolves a named mode to its clamped leverage multiplier.
func (rp *RiskProfile) LeverageFor(mode string) (decimal.Decimal, error) {
	lev, ok := rp.modes[mode]
	if !ok {
		return decimal.Zero, ErrUnknownRiskMode
	}
	return rp.Clamp(lev), nil
}

// Clamp bounds a leverage value to the configured range.
func (rp *RiskProfile) Clamp(lev decimal.Decimal) decimal.Decimal {
	if lev.LessThan(rp.min) {
		return rp.min
	}
	if lev.GreaterThan(rp.max) {
		return rp.max
	}
	return lev
}

// Range returns the configured [min, max] leverage bound.
func (rp *RiskProfile) Range() (decimal.Decimal, decimal.Decimal) {
	return rp.min, rp.max
}

// Modes returns the configured mode names in stable order.
func (rp *RiskProfile) Modes() []string {
	names := make([]string, 0, len(rp.modes))
	for name := range rp.modes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
