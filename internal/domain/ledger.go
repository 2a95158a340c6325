package domain

import (
	"context"
	"math"
	"time"
)

// MaxPeriodsPerPurchase bounds a single purchase. 365 periods keeps one
// transaction's cost representable and stops accidental multi-year buys.
const MaxPeriodsPerPurchase = 365

// MaxUnitPrice is the largest price that cannot overflow uint64 when
// multiplied by MaxPeriodsPerPurchase.
const MaxUnitPrice = math.MaxUint64 / MaxPeriodsPerPurchase

// Params is the ledger's global configuration singleton. Only the
// administrator may mutate it.
type Params struct {
	Token         string    `bson:"token" json:"token"`                   // external asset reference
	Treasury      string    `bson:"treasury" json:"treasury"`             // receives all payments
	Administrator string    `bson:"administrator" json:"administrator"`   // sole privileged identity
	UnitPrice     uint64    `bson:"unit_price" json:"unit_price"`         // token base units per period
	PeriodSeconds uint64    `bson:"period_seconds" json:"period_seconds"` // always > 0
	Paused        bool      `bson:"paused" json:"paused"`
	UpdatedAt     time.Time `bson:"updated_at" json:"updated_at"`
}

// Validate checks the constructor-time invariants. The same rules are
// re-applied by the individual setters for the whole ledger lifetime.
func (p *Params) Validate() error {
	if p.PeriodSeconds == 0 {
		return ErrInvalidPeriod
	}
	if !IsValidIdentity(p.Treasury) || !IsValidIdentity(p.Administrator) {
		return ErrInvalidRecipient
	}
	if p.UnitPrice > MaxUnitPrice {
		return ErrPriceOverflow
	}
	return nil
}

// Account maps an identity to its absolute access expiry. ExpiresAt is
// unix seconds; zero means the identity has never purchased.
type Account struct {
	Identity  string    `bson:"_id" json:"identity"`
	ExpiresAt uint64    `bson:"expires_at" json:"expires_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// NextExpiry implements the extension rule: an active account stacks new
// periods on top of its remaining time, an expired or fresh account starts
// counting from now. The result always advances by exact period multiples.
func NextExpiry(now, current, periodSeconds, periods uint64) uint64 {
	base := now
	if current > base {
		base = current
	}
	return base + periodSeconds*periods
}

// Cost returns unitPrice*periods and reports whether the product is
// representable. With price capped at MaxUnitPrice and periods validated
// this cannot overflow, but the guard keeps the arithmetic self-contained.
func Cost(unitPrice, periods uint64) (uint64, bool) {
	if unitPrice == 0 || periods == 0 {
		return 0, true
	}
	total := unitPrice * periods
	if total/unitPrice != periods {
		return 0, false
	}
	return total, true
}

// ValidatePeriods enforces the [1, MaxPeriodsPerPurchase] purchase bound.
func ValidatePeriods(periods uint64) error {
	if periods == 0 {
		return ErrZeroPeriods
	}
	if periods > MaxPeriodsPerPurchase {
		return ErrTooManyPeriods
	}
	return nil
}

// IsValidIdentity rejects the null identity. Identities are opaque strings
// supplied by the caller-identity provider; the ledger only cares that one
// is actually present.
func IsValidIdentity(identity string) bool {
	return identity != ""
}

// ParamsRepository persists the global parameter singleton.
type ParamsRepository interface {
	Load(ctx context.Context) (*Params, error)
	Save(ctx context.Context, params *Params) error
}

// AccountRepository persists per-identity expiry records.
type AccountRepository interface {
	// GetExpiry returns 0 (not ErrNotFound) for an identity that has
	// never purchased.
	GetExpiry(ctx context.Context, identity string) (uint64, error)
	SetExpiry(ctx context.Context, identity string, expiresAt uint64) error
}
