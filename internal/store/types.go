package store

import (
	"time"

	"github.com/grantline/vestd/internal/date"
	"github.com/grantline/vestd/internal/fixed"
)

// GrantStatus is the lifecycle state of a grant. Transitions are owned by
// external workflows; the engine only reads it.
type GrantStatus string

const (
	StatusActive      GrantStatus = "active"
	StatusTerminated  GrantStatus = "terminated"
	StatusFullyVested GrantStatus = "fully_vested"
)

// Grant is one equity award.
type Grant struct {
	ID         string
	TenantID   string
	EmployeeID string
	GrantDate  date.Date

	// Total is the full share amount of the award.
	Total fixed.Amount

	// Vested is the running total of materialized shares. Non-decreasing,
	// never exceeds Total. Maintained by the materializer (increment) and
	// the reconciler (full recompute).
	Vested fixed.Amount

	Status GrantStatus

	// Version is the optimistic-concurrency counter. Every successful
	// mutation bumps it by exactly one, and every mutation is conditioned
	// on the caller's last-read value.
	Version int64
}

// VestingEvent is one realized tranche on the ledger.
type VestingEvent struct {
	ID       string
	GrantID  string
	TenantID string
	VestDate date.Date

	// Shares is the vested quantity; always positive.
	Shares fixed.Amount

	// PPS is the price-per-share snapshot taken at creation time, nil when
	// no price history covered the vest date.
	PPS *fixed.Amount

	CreatedAt time.Time
}

// Tenant is a company whose grants the ledger tracks.
type Tenant struct {
	ID   string
	Name string
}

// Employee is a grant recipient within a tenant.
type Employee struct {
	ID       string
	TenantID string
	Name     string
}

// PriceSnapshot is one entry of a tenant's price-per-share history.
type PriceSnapshot struct {
	TenantID      string
	EffectiveDate date.Date
	Price         fixed.Amount
}

// DuplicateGroup identifies a (grant, vest date) pair holding more than one
// event - the corruption state the reconciler repairs.
type DuplicateGroup struct {
	GrantID  string
	VestDate date.Date
	Count    int
}
