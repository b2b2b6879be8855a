package revenuesrv

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meridian-hq/meridian/pkg/kernel"
	"github.com/meridian-hq/meridian/pkg/revenue"
)

// Service runs monthly revenue processing for tenants and exposes the read
// side of the ledger.
type Service struct {
	store  revenue.LedgerStore
	engine *revenue.Engine
	log    *zap.Logger
	now    func() time.Time
}

func NewService(store revenue.LedgerStore, engine *revenue.Engine, log *zap.Logger) *Service {
	return &Service{
		store:  store,
		engine: engine,
		log:    log.Named("revenue"),
		now:    time.Now,
	}
}

// NewServiceWithClock is NewService with an injected clock, for tests.
func NewServiceWithClock(store revenue.LedgerStore, engine *revenue.Engine, log *zap.Logger, now func() time.Time) *Service {
	s := NewService(store, engine, log)
	s.now = now
	return s
}

// ProcessMonthlyRevenue computes and persists a tenant's commission for the
// current calendar month: it sums the month's completed orders, runs the
// commission engine, then commits the state update and commission records in
// one transaction. Each period commits at most once per tenant; reprocessing
// an already-committed period fails with a permanent conflict.
func (s *Service) ProcessMonthlyRevenue(ctx context.Context, tenantID kernel.TenantID) (*revenue.CommissionCalculation, error) {
	now := s.now().UTC()
	period := kernel.PeriodOf(now)

	cfg, err := s.store.TenantConfig(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	from, to := kernel.MonthBounds(now)
	monthlyRevenue, err := s.store.CompletedOrderTotal(ctx, tenantID, from, to)
	if err != nil {
		return nil, err
	}

	calc, err := s.engine.CalculateEffectiveRate(*cfg, monthlyRevenue)
	if err != nil {
		return nil, err
	}

	records := s.buildRecords(tenantID, period, cfg, calc, now)
	if err := s.store.CommitCalculation(ctx, tenantID, period, calc, records); err != nil {
		return nil, err
	}

	s.log.Info("monthly revenue processed",
		zap.String("tenant_id", tenantID.String()),
		zap.String("period", period.String()),
		zap.Float64("monthly_revenue", calc.MonthlyRevenue),
		zap.Float64("effective_rate", calc.EffectiveRate),
		zap.Float64("platform_commission", calc.PlatformCommission),
		zap.Float64("referral_commission", calc.ReferralCommission))

	return calc, nil
}

// buildRecords emits the accounting lines for one calculation: a platform
// record when the platform nets anything, and a separate referral record when
// an active referrer earned a share.
func (s *Service) buildRecords(tenantID kernel.TenantID, period kernel.Period, cfg *revenue.Config, calc *revenue.CommissionCalculation, now time.Time) []revenue.CommissionRecord {
	var records []revenue.CommissionRecord

	if calc.NetCommission > 0 {
		records = append(records, revenue.CommissionRecord{
			ID:        uuid.NewString(),
			TenantID:  tenantID,
			Kind:      revenue.RecordPlatform,
			Amount:    calc.NetCommission,
			Rate:      calc.EffectiveRate,
			Period:    period,
			Status:    revenue.RecordPending,
			CreatedAt: now,
		})
	}

	if calc.ReferralCommission > 0 && cfg.Referral != nil && !cfg.Referral.ReferrerID.IsEmpty() {
		referrerID := cfg.Referral.ReferrerID
		records = append(records, revenue.CommissionRecord{
			ID:         uuid.NewString(),
			TenantID:   tenantID,
			Kind:       revenue.RecordReferral,
			Amount:     calc.ReferralCommission,
			Rate:       cfg.Referral.CommissionRate,
			Period:     period,
			ReferrerID: &referrerID,
			Status:     revenue.RecordPending,
			CreatedAt:  now,
		})
	}

	return records
}

// RevenueState returns a tenant's accumulated revenue state.
func (s *Service) RevenueState(ctx context.Context, tenantID kernel.TenantID) (*revenue.State, error) {
	return s.store.RevenueState(ctx, tenantID)
}

// CommissionRecords lists a tenant's commission records.
func (s *Service) CommissionRecords(ctx context.Context, tenantID kernel.TenantID, period kernel.Period, opts kernel.PaginationOptions) (kernel.Paginated[revenue.CommissionRecord], error) {
	return s.store.CommissionRecords(ctx, tenantID, period, opts)
}
