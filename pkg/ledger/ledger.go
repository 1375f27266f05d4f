// Package ledger tracks per-tenant spend. The ledger is the only
// shared mutable resource in the system: implementations must support
// atomic appends and consistent window reads under concurrent callers
// from many workflows.
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/tombee/maestro/pkg/errors"
)

// Period is a budget accounting window.
type Period string

const (
	// PeriodDay is the current UTC calendar day.
	PeriodDay Period = "day"

	// PeriodMonth is the current UTC calendar month.
	PeriodMonth Period = "month"
)

// Valid returns true if the period is a known value.
func (p Period) Valid() bool {
	return p == PeriodDay || p == PeriodMonth
}

// Entry is one recorded spend event.
type Entry struct {
	// TenantID scopes the spend to a billing tenant.
	TenantID string

	// Amount is the monetary cost in USD.
	Amount decimal.Decimal

	// TaskType tags the kind of work for cost-history bucketing.
	TaskType string

	// At is when the spend occurred. Zero means now.
	At time.Time
}

// Validate checks entry fields before appending.
func (e Entry) Validate() error {
	if e.TenantID == "" {
		return &pkgerrors.ValidationError{
			Field:   "tenant_id",
			Message: "tenant ID cannot be empty",
		}
	}
	if e.Amount.IsNegative() {
		return &pkgerrors.ValidationError{
			Field:   "amount",
			Message: "spend amount cannot be negative",
		}
	}
	return nil
}

// Ledger is the durable store of per-tenant spend.
type Ledger interface {
	// Spend returns the total recorded spend for a tenant in the
	// current period window.
	Spend(ctx context.Context, tenantID string, period Period) (decimal.Decimal, error)

	// Append atomically records a spend entry.
	Append(ctx context.Context, entry Entry) error
}

// windowStart returns the UTC start of the period window containing now.
func windowStart(period Period, now time.Time) time.Time {
	now = now.UTC()
	switch period {
	case PeriodMonth:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
}
