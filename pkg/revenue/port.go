package revenue

import (
	"context"
	"time"

	"github.com/meridian-hq/meridian/pkg/kernel"
)

// LedgerStore is the durable backing for tenant revenue processing.
type LedgerStore interface {
	// TenantConfig loads a tenant's commission configuration.
	TenantConfig(ctx context.Context, tenantID kernel.TenantID) (*Config, error)

	// CompletedOrderTotal sums the order totals for a tenant's completed
	// orders within [from, to).
	CompletedOrderTotal(ctx context.Context, tenantID kernel.TenantID, from, to time.Time) (float64, error)

	// RevenueState loads a tenant's accumulated revenue state.
	RevenueState(ctx context.Context, tenantID kernel.TenantID) (*State, error)

	// CommissionRecords lists a tenant's commission records, newest first,
	// optionally filtered by period.
	CommissionRecords(ctx context.Context, tenantID kernel.TenantID, period kernel.Period, opts kernel.PaginationOptions) (kernel.Paginated[CommissionRecord], error)

	// CommitCalculation applies a calculation in a single transaction: the
	// tenant's revenue state is updated (accumulators grow by the period's
	// revenue and platform commission) and the commission records are
	// inserted. A period that already has records for this tenant fails the
	// whole transaction with ErrPeriodProcessed.
	CommitCalculation(ctx context.Context, tenantID kernel.TenantID, period kernel.Period, calc *CommissionCalculation, records []CommissionRecord) error
}
