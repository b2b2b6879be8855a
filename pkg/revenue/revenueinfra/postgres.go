package revenueinfra

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/meridian-hq/meridian/pkg/errx"
	"github.com/meridian-hq/meridian/pkg/kernel"
	"github.com/meridian-hq/meridian/pkg/revenue"
)

// PostgresLedgerStore implements revenue.LedgerStore on PostgreSQL.
type PostgresLedgerStore struct {
	db *sqlx.DB
}

func NewPostgresLedgerStore(db *sqlx.DB) revenue.LedgerStore {
	return &PostgresLedgerStore{db: db}
}

// TenantConfig loads a tenant's commission configuration.
func (r *PostgresLedgerStore) TenantConfig(ctx context.Context, tenantID kernel.TenantID) (*revenue.Config, error) {
	var p tenantConfigPersistence
	query := `
		SELECT base_rate, partnership_tier, volume_discounts,
		       referrer_id, referral_rate, referral_term, referral_status, created_at
		FROM tenants WHERE id = $1`

	err := r.db.GetContext(ctx, &p, query, tenantID.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, revenue.NewError(revenue.ErrTenantNotFound).
				WithDetail("tenant_id", tenantID.String())
		}
		return nil, errx.Wrap(err, "failed to load tenant config", errx.TypeInternal).
			WithDetail("tenant_id", tenantID.String())
	}

	return configToDomain(p)
}

// CompletedOrderTotal sums completed order totals for the tenant in [from, to).
func (r *PostgresLedgerStore) CompletedOrderTotal(ctx context.Context, tenantID kernel.TenantID, from, to time.Time) (float64, error) {
	var total float64
	query := `
		SELECT COALESCE(SUM(total), 0) FROM orders
		WHERE tenant_id = $1 AND status = 'completed'
		  AND completed_at >= $2 AND completed_at < $3`

	err := r.db.GetContext(ctx, &total, query, tenantID.String(), from, to)
	if err != nil {
		return 0, errx.Wrap(err, "failed to sum completed orders", errx.TypeInternal).
			WithDetail("tenant_id", tenantID.String())
	}
	return total, nil
}

// RevenueState loads a tenant's accumulated revenue state.
func (r *PostgresLedgerStore) RevenueState(ctx context.Context, tenantID kernel.TenantID) (*revenue.State, error) {
	var p statePersistence
	query := `
		SELECT tenant_id, monthly_revenue, total_revenue, commissions_paid,
		       current_effective_rate, last_calculated_at
		FROM tenant_revenue_state WHERE tenant_id = $1`

	err := r.db.GetContext(ctx, &p, query, tenantID.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, revenue.NewError(revenue.ErrStateNotFound).
				WithDetail("tenant_id", tenantID.String())
		}
		return nil, errx.Wrap(err, "failed to load revenue state", errx.TypeInternal).
			WithDetail("tenant_id", tenantID.String())
	}

	state := stateToDomain(p)
	return &state, nil
}

// CommissionRecords lists commission records for the tenant, newest first.
func (r *PostgresLedgerStore) CommissionRecords(ctx context.Context, tenantID kernel.TenantID, period kernel.Period, opts kernel.PaginationOptions) (kernel.Paginated[revenue.CommissionRecord], error) {
	opts = opts.Normalize()

	where := `WHERE tenant_id = $1`
	args := []any{tenantID.String()}
	if !period.IsEmpty() {
		where += ` AND period = $2`
		args = append(args, period.String())
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT count(*) FROM commission_records `+where, args...); err != nil {
		return kernel.Paginated[revenue.CommissionRecord]{},
			errx.Wrap(err, "failed to count commission records", errx.TypeInternal)
	}

	query := fmt.Sprintf(`
		SELECT id, tenant_id, kind, amount, rate, period, referrer_id, status, created_at
		FROM commission_records %s
		ORDER BY created_at DESC
		LIMIT %d OFFSET %d`, where, opts.PageSize, opts.Offset())

	var rows []recordPersistence
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return kernel.Paginated[revenue.CommissionRecord]{},
			errx.Wrap(err, "failed to list commission records", errx.TypeInternal)
	}

	records := make([]revenue.CommissionRecord, len(rows))
	for i, row := range rows {
		records[i] = recordToDomain(row)
	}
	return kernel.NewPaginated(records, opts.Page, opts.PageSize, total), nil
}

// CommitCalculation applies one period's calculation atomically. The state
// upsert refuses to move backwards or repeat a period, and the unique index
// on (tenant_id, period, kind) backs that up for the record inserts. Either
// everything lands or nothing does.
func (r *PostgresLedgerStore) CommitCalculation(ctx context.Context, tenantID kernel.TenantID, period kernel.Period, calc *revenue.CommissionCalculation, records []revenue.CommissionRecord) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return revenue.NewErrorWithCause(revenue.ErrLedgerFailure, err)
	}
	defer tx.Rollback()

	if err := upsertState(ctx, tx, tenantID, period, calc); err != nil {
		return err
	}
	for i := range records {
		if err := insertRecord(ctx, tx, &records[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return revenue.NewErrorWithCause(revenue.ErrLedgerFailure, err).
			WithDetail("tenant_id", tenantID.String()).
			WithDetail("period", period.String())
	}
	return nil
}

func upsertState(ctx context.Context, tx *sqlx.Tx, tenantID kernel.TenantID, period kernel.Period, calc *revenue.CommissionCalculation) error {
	query := `
		INSERT INTO tenant_revenue_state (
			tenant_id, monthly_revenue, total_revenue, commissions_paid,
			current_effective_rate, last_calculated_at, last_processed_period
		) VALUES ($1, $2, $2, $3, $4, now(), $5)
		ON CONFLICT (tenant_id) DO UPDATE SET
			monthly_revenue = EXCLUDED.monthly_revenue,
			total_revenue = tenant_revenue_state.total_revenue + EXCLUDED.monthly_revenue,
			commissions_paid = tenant_revenue_state.commissions_paid + $3,
			current_effective_rate = EXCLUDED.current_effective_rate,
			last_calculated_at = now(),
			last_processed_period = EXCLUDED.last_processed_period
		WHERE tenant_revenue_state.last_processed_period IS NULL
		   OR tenant_revenue_state.last_processed_period < EXCLUDED.last_processed_period`

	result, err := tx.ExecContext(ctx, query,
		tenantID.String(), calc.MonthlyRevenue, calc.PlatformCommission,
		calc.EffectiveRate, period.String())
	if err != nil {
		return errx.Wrap(err, "failed to update revenue state", errx.TypeInternal).
			WithDetail("tenant_id", tenantID.String())
	}

	n, err := result.RowsAffected()
	if err != nil {
		return errx.Wrap(err, "failed to read rows affected", errx.TypeInternal)
	}
	if n == 0 {
		return revenue.NewError(revenue.ErrPeriodProcessed).
			WithDetail("tenant_id", tenantID.String()).
			WithDetail("period", period.String())
	}
	return nil
}

func insertRecord(ctx context.Context, tx *sqlx.Tx, rec *revenue.CommissionRecord) error {
	query := `
		INSERT INTO commission_records (
			id, tenant_id, kind, amount, rate, period, referrer_id, status, created_at
		) VALUES (
			:id, :tenant_id, :kind, :amount, :rate, :period, :referrer_id, :status, :created_at
		)`

	_, err := tx.NamedExecContext(ctx, query, recordToPersistence(rec))
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" { // unique_violation
			return revenue.NewError(revenue.ErrPeriodProcessed).
				WithDetail("tenant_id", rec.TenantID.String()).
				WithDetail("period", rec.Period.String())
		}
		return errx.Wrap(err, "failed to insert commission record", errx.TypeInternal).
			WithDetail("record_id", rec.ID)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Persistence mapping
// ---------------------------------------------------------------------------

type tenantConfigPersistence struct {
	BaseRate        float64         `db:"base_rate"`
	PartnershipTier string          `db:"partnership_tier"`
	VolumeDiscounts []byte          `db:"volume_discounts"`
	ReferrerID      sql.NullString  `db:"referrer_id"`
	ReferralRate    sql.NullFloat64 `db:"referral_rate"`
	ReferralTerm    sql.NullString  `db:"referral_term"`
	ReferralStatus  sql.NullString  `db:"referral_status"`
	CreatedAt       time.Time       `db:"created_at"`
}

func configToDomain(p tenantConfigPersistence) (*revenue.Config, error) {
	cfg := &revenue.Config{
		BaseRate: p.BaseRate,
		Tier:     revenue.PartnershipTier(p.PartnershipTier),
	}

	if len(p.VolumeDiscounts) > 0 {
		if err := json.Unmarshal(p.VolumeDiscounts, &cfg.VolumeDiscounts); err != nil {
			return nil, errx.Wrap(err, "malformed volume discounts", errx.TypeValidation)
		}
	}

	if p.ReferrerID.Valid && p.ReferrerID.String != "" {
		cfg.Referral = &revenue.Referral{
			ReferrerID:      kernel.ReferrerID(p.ReferrerID.String),
			CommissionRate:  p.ReferralRate.Float64,
			Term:            revenue.ReferralTerm(p.ReferralTerm.String),
			Status:          revenue.ReferralStatus(p.ReferralStatus.String),
			TenantCreatedAt: p.CreatedAt,
		}
	}
	return cfg, nil
}

type statePersistence struct {
	TenantID             string     `db:"tenant_id"`
	MonthlyRevenue       float64    `db:"monthly_revenue"`
	TotalRevenue         float64    `db:"total_revenue"`
	CommissionsPaid      float64    `db:"commissions_paid"`
	CurrentEffectiveRate float64    `db:"current_effective_rate"`
	LastCalculatedAt     *time.Time `db:"last_calculated_at"`
}

func stateToDomain(p statePersistence) revenue.State {
	return revenue.State{
		TenantID:             kernel.TenantID(p.TenantID),
		MonthlyRevenue:       p.MonthlyRevenue,
		TotalRevenue:         p.TotalRevenue,
		CommissionsPaid:      p.CommissionsPaid,
		CurrentEffectiveRate: p.CurrentEffectiveRate,
		LastCalculatedAt:     p.LastCalculatedAt,
	}
}

type recordPersistence struct {
	ID         string         `db:"id"`
	TenantID   string         `db:"tenant_id"`
	Kind       string         `db:"kind"`
	Amount     float64        `db:"amount"`
	Rate       float64        `db:"rate"`
	Period     string         `db:"period"`
	ReferrerID sql.NullString `db:"referrer_id"`
	Status     string         `db:"status"`
	CreatedAt  time.Time      `db:"created_at"`
}

func recordToPersistence(rec *revenue.CommissionRecord) recordPersistence {
	p := recordPersistence{
		ID:        rec.ID,
		TenantID:  rec.TenantID.String(),
		Kind:      string(rec.Kind),
		Amount:    rec.Amount,
		Rate:      rec.Rate,
		Period:    rec.Period.String(),
		Status:    string(rec.Status),
		CreatedAt: rec.CreatedAt,
	}
	if rec.ReferrerID != nil {
		p.ReferrerID = sql.NullString{String: rec.ReferrerID.String(), Valid: true}
	}
	return p
}

func recordToDomain(p recordPersistence) revenue.CommissionRecord {
	rec := revenue.CommissionRecord{
		ID:        p.ID,
		TenantID:  kernel.TenantID(p.TenantID),
		Kind:      revenue.RecordKind(p.Kind),
		Amount:    p.Amount,
		Rate:      p.Rate,
		Period:    kernel.Period(p.Period),
		Status:    revenue.RecordStatus(p.Status),
		CreatedAt: p.CreatedAt,
	}
	if p.ReferrerID.Valid {
		id := kernel.ReferrerID(p.ReferrerID.String)
		rec.ReferrerID = &id
	}
	return rec
}
