package domain

import "errors"

// Common errors
var (
	ErrNotFound = errors.New("record not found")

	// Ledger operation errors. Handlers dispatch on these with errors.Is,
	// so the service never wraps one ledger error inside another.
	ErrUnauthorized       = errors.New("caller is not the administrator")
	ErrInvalidPeriod      = errors.New("period length must be greater than zero")
	ErrZeroPeriods        = errors.New("period count must be at least one")
	ErrTooManyPeriods     = errors.New("period count exceeds the per-purchase maximum")
	ErrInvalidRecipient   = errors.New("recipient identity is empty or invalid")
	ErrPaymentFailed      = errors.New("token transfer failed")
	ErrPaused             = errors.New("purchases are paused")
	ErrInvalidStateToggle = errors.New("ledger is already in the requested pause state")
	ErrPriceOverflow      = errors.New("unit price not representable at the maximum period count")
)
