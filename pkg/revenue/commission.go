package revenue

import "time"

// Engine computes commission splits. It is pure: no I/O, and deterministic
// for a fixed clock, which tests inject via NewEngineWithClock.
type Engine struct {
	now func() time.Time
}

func NewEngine() *Engine {
	return &Engine{now: time.Now}
}

// NewEngineWithClock returns an engine that evaluates referral terms against
// the given clock.
func NewEngineWithClock(now func() time.Time) *Engine {
	return &Engine{now: now}
}

// CalculateEffectiveRate produces the commission split for a tenant's monthly
// revenue:
//
//  1. Start from the tenant's base rate.
//  2. Apply the best volume discount — among entries whose threshold is at or
//     below the revenue, the highest threshold wins; on equal thresholds the
//     last matching entry wins.
//  3. Multiply by the partnership tier multiplier (on top of any discount).
//  4. Split the platform commission into referral and net shares.
//
// Zero revenue yields zero commissions and no volume discount. Negative
// revenue is rejected.
func (e *Engine) CalculateEffectiveRate(cfg Config, monthlyRevenue float64) (*CommissionCalculation, error) {
	if monthlyRevenue < 0 {
		return nil, revenueErrors.New(ErrNegativeAmount).
			WithDetail("monthly_revenue", monthlyRevenue)
	}

	calc := &CommissionCalculation{
		BaseRate:       cfg.BaseRate,
		EffectiveRate:  cfg.BaseRate,
		MonthlyRevenue: monthlyRevenue,
	}

	if monthlyRevenue > 0 {
		if d := bestVolumeDiscount(cfg.VolumeDiscounts, monthlyRevenue); d != nil {
			calc.EffectiveRate = d.DiscountedRate
			calc.VolumeDiscount = &VolumeDiscountDetail{
				Threshold:      d.RevenueThreshold,
				OriginalRate:   cfg.BaseRate,
				DiscountedRate: d.DiscountedRate,
				Savings:        (cfg.BaseRate - d.DiscountedRate) * monthlyRevenue / 100,
			}
		}
	}

	calc.EffectiveRate *= cfg.Tier.Multiplier()
	calc.PlatformCommission = monthlyRevenue * calc.EffectiveRate / 100

	if cfg.Referral != nil && cfg.Referral.ActiveAt(e.now()) {
		calc.ReferralCommission = calc.PlatformCommission * cfg.Referral.CommissionRate / 100
	}
	calc.NetCommission = calc.PlatformCommission - calc.ReferralCommission

	return calc, nil
}

// CalculateProductCommission is the per-transaction variant. The product's
// custom rate (when enabled) replaces the tenant base rate, the transaction
// source picks a multiplier, and the tier multiplier applies as usual. Volume
// discounts never apply here: single transactions are not monthly aggregates.
func (e *Engine) CalculateProductCommission(cfg Config, product ProductConfig, amount float64, source CommissionSource) (*CommissionCalculation, error) {
	if amount < 0 {
		return nil, revenueErrors.New(ErrNegativeAmount).WithDetail("amount", amount)
	}

	sourceMultiplier, ok := product.multiplierFor(source)
	if !ok {
		return nil, revenueErrors.New(ErrUnknownSource).WithDetail("source", string(source))
	}

	baseRate := cfg.BaseRate
	if product.CustomRateEnabled {
		baseRate = product.CustomRate
	}

	calc := &CommissionCalculation{
		BaseRate:       baseRate,
		EffectiveRate:  baseRate * sourceMultiplier * cfg.Tier.Multiplier(),
		MonthlyRevenue: amount,
	}
	calc.PlatformCommission = amount * calc.EffectiveRate / 100

	if cfg.Referral != nil && cfg.Referral.ActiveAt(e.now()) {
		calc.ReferralCommission = calc.PlatformCommission * cfg.Referral.CommissionRate / 100
	}
	calc.NetCommission = calc.PlatformCommission - calc.ReferralCommission

	return calc, nil
}

// bestVolumeDiscount picks the applicable entry with the highest threshold.
// The >= comparison makes the last matching entry win on equal thresholds.
func bestVolumeDiscount(discounts []VolumeDiscount, revenue float64) *VolumeDiscount {
	var best *VolumeDiscount
	for i := range discounts {
		d := &discounts[i]
		if d.RevenueThreshold > revenue {
			continue
		}
		if best == nil || d.RevenueThreshold >= best.RevenueThreshold {
			best = d
		}
	}
	return best
}
