package domain

import (
	"context"
	"time"
)

// Event kinds emitted by the ledger
const (
	EventSubscribed       = "subscribed"
	EventCanceled         = "canceled"
	EventPriceUpdated     = "price_updated"
	EventTreasuryUpdated  = "treasury_updated"
	EventPeriodUpdated    = "period_updated"
	EventAdminTransferred = "admin_transferred"
)

// Event is one append-only ledger record. A single struct covers every
// kind; unused fields stay at their zero value and are omitted from
// storage. Events are ordered by At and queryable by identity.
type Event struct {
	ID   string    `bson:"_id" json:"id"`
	Kind string    `bson:"kind" json:"kind"`
	At   time.Time `bson:"at" json:"at"`

	// subscribed
	Payer       string `bson:"payer,omitempty" json:"payer,omitempty"`
	Beneficiary string `bson:"beneficiary,omitempty" json:"beneficiary,omitempty"`
	Periods     uint64 `bson:"periods,omitempty" json:"periods,omitempty"`
	NewExpiry   uint64 `bson:"new_expiry,omitempty" json:"new_expiry,omitempty"`
	Amount      uint64 `bson:"amount,omitempty" json:"amount,omitempty"`

	// canceled
	Identity  string `bson:"identity,omitempty" json:"identity,omitempty"`
	OldExpiry uint64 `bson:"old_expiry,omitempty" json:"old_expiry,omitempty"`

	// parameter updates
	OldPrice    uint64 `bson:"old_price,omitempty" json:"old_price,omitempty"`
	NewPrice    uint64 `bson:"new_price,omitempty" json:"new_price,omitempty"`
	OldPeriod   uint64 `bson:"old_period,omitempty" json:"old_period,omitempty"`
	NewPeriod   uint64 `bson:"new_period,omitempty" json:"new_period,omitempty"`
	OldTreasury string `bson:"old_treasury,omitempty" json:"old_treasury,omitempty"`
	NewTreasury string `bson:"new_treasury,omitempty" json:"new_treasury,omitempty"`
	OldAdmin    string `bson:"old_admin,omitempty" json:"old_admin,omitempty"`
	NewAdmin    string `bson:"new_admin,omitempty" json:"new_admin,omitempty"`
}

// EventRepository is the ledger's durable event log.
type EventRepository interface {
	Append(ctx context.Context, event *Event) error
	// List returns the newest events first.
	List(ctx context.Context, limit int64) ([]*Event, error)
	// ListByIdentity matches events where the identity appears as payer,
	// beneficiary or cancellation subject, newest first.
	ListByIdentity(ctx context.Context, identity string, limit int64) ([]*Event, error)
}
