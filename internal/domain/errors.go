package domain

import (
	"errors"
)

// ──────────────────────────────────────────────────────────────────────────────
// Sentinel errors — compare with errors.Is()
// ──────────────────────────────────────────────────────────────────────────────

// Open rejections.  Every one of these is checked before any state is
// mutated — a rejected open leaves the ledger and position set untouched.
var (
	// ErrNoPriceAvailable is returned when a market order is placed for a
	// market the price feed has not produced a price for yet.
	ErrNoPriceAvailable = errors.New("no price available for market")

	// ErrInsufficientBalance is returned when the balance cannot cover the
	// margin reserved for the requested risk amount.
	ErrInsufficientBalance = errors.New("insufficient account balance")

	// ErrUnknownMarket is returned when the market symbol is not in the
	// configured instrument set.
	ErrUnknownMarket = errors.New("unknown market symbol")

	// ErrInvalidDirection is returned when the direction is not LONG or SHORT.
	ErrInvalidDirection = errors.New("invalid direction: must be LONG or SHORT")

	// ErrInvalidRiskAmount is returned when the risk amount is zero or negative.
	ErrInvalidRiskAmount = errors.New("risk amount must be positive")

	// ErrInvalidLeverage is returned when neither a risk mode nor a positive
	// explicit leverage is supplied.
	ErrInvalidLeverage = errors.New("leverage must be positive")

	// ErrUnknownRiskMode is returned when the named risk mode is not in the
	// configured table.
	ErrUnknownRiskMode = errors.New("unknown risk mode")

	// ErrInvalidOrderSpec is returned when the order spec's type and fields
	// do not agree (e.g. a limit order without a limit price).
	ErrInvalidOrderSpec = errors.New("invalid order spec")
)

// Lookup failures.
var (
	// ErrPositionNotFound is returned when no open position matches the
	// given id.  Close treats it as a defensive no-op, not a failure.
	ErrPositionNotFound = errors.New("position not found")
)

// Auth errors.
var (
	// ErrUnauthorized is returned when a valid session token is not present.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrTokenInvalid is returned when a token cannot be parsed or its
	// signature does not match.
	ErrTokenInvalid = errors.New("token is invalid")
)

// ──────────────────────────────────────────────────────────────────────────────
// Helper predicates
// ──────────────────────────────────────────────────────────────────────────────

// rejectionErrors collects the open-rejection sentinels so IsRejection can
// stay in sync automatically.
var rejectionErrors = []error{
	ErrNoPriceAvailable,
	ErrInsufficientBalance,
	ErrUnknownMarket,
	ErrInvalidDirection,
	ErrInvalidRiskAmount,
	ErrInvalidLeverage,
	ErrUnknownRiskMode,
	ErrInvalidOrderSpec,
}

// IsRejection returns true when err (or any error in its chain) is one of
// the precondition failures that reject a command without mutating state.
// Use this when translating engine errors to HTTP 4xx responses.
func IsRejection(err error) bool {
	for _, target := range rejectionErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsNotFound returns true for "entity not found" errors.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPositionNotFound)
}
