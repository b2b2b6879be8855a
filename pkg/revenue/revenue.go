package revenue

import (
	"time"

	"github.com/meridian-hq/meridian/pkg/kernel"
)

// PartnershipTier is a discount classification applied multiplicatively to a
// tenant's commission rate.
type PartnershipTier string

const (
	TierStandard       PartnershipTier = "standard"
	TierPreferred      PartnershipTier = "preferred"
	TierStrategic      PartnershipTier = "strategic"
	TierEnterprise     PartnershipTier = "enterprise"
	TierReferralSource PartnershipTier = "referral_source"
)

var tierMultipliers = map[PartnershipTier]float64{
	TierStandard:       1.0,
	TierPreferred:      0.85,
	TierStrategic:      0.70,
	TierEnterprise:     0.60,
	TierReferralSource: 0.50,
}

// Multiplier returns the tier's rate multiplier. Unknown tiers are treated as
// standard rather than failing the calculation.
func (t PartnershipTier) Multiplier() float64 {
	if m, ok := tierMultipliers[t]; ok {
		return m
	}
	return 1.0
}

// ReferralTerm controls how long a referral keeps earning commission.
type ReferralTerm string

const (
	TermLifetime  ReferralTerm = "lifetime"
	Term12Months  ReferralTerm = "12_months"
	Term24Months  ReferralTerm = "24_months"
	TermFirstYear ReferralTerm = "first_year"
)

// ReferralStatus is the administrative state of a referral relationship.
type ReferralStatus string

const (
	ReferralActive    ReferralStatus = "active"
	ReferralExpired   ReferralStatus = "expired"
	ReferralSuspended ReferralStatus = "suspended"
)

// Referral describes who referred a tenant and on what terms.
type Referral struct {
	ReferrerID      kernel.ReferrerID `json:"referrer_id"`
	CommissionRate  float64           `json:"commission_rate"`
	Term            ReferralTerm      `json:"term"`
	Status          ReferralStatus    `json:"status"`
	TenantCreatedAt time.Time         `json:"tenant_created_at"`
}

// monthHours approximates one month as 30.44 days when computing elapsed
// referral time.
const monthHours = 30.44 * 24

// ActiveAt reports whether the referral earns commission at the given time.
// Suspended or expired referrals never do; active ones are bounded by their
// term. Unknown terms are inactive.
func (r Referral) ActiveAt(now time.Time) bool {
	if r.Status != ReferralActive {
		return false
	}

	elapsedMonths := now.Sub(r.TenantCreatedAt).Hours() / monthHours
	switch r.Term {
	case TermLifetime:
		return true
	case Term12Months, TermFirstYear:
		return elapsedMonths <= 12
	case Term24Months:
		return elapsedMonths <= 24
	default:
		return false
	}
}

// VolumeDiscount is a stepped rate reduction that applies once monthly
// revenue crosses its threshold.
type VolumeDiscount struct {
	RevenueThreshold float64 `json:"revenue_threshold"`
	DiscountedRate   float64 `json:"discounted_rate"`
}

// Config is a tenant's commission configuration. Rates are percentages,
// e.g. BaseRate 3.0 means 3% of revenue.
type Config struct {
	BaseRate        float64          `json:"base_rate"`
	Tier            PartnershipTier  `json:"partnership_tier"`
	VolumeDiscounts []VolumeDiscount `json:"volume_discounts,omitempty"`
	Referral        *Referral        `json:"referral,omitempty"`
}

// CommissionSource tags where a product-level transaction originated; each
// source carries its own rate multiplier.
type CommissionSource string

const (
	SourceSystemGenerated CommissionSource = "system_generated"
	SourcePickupJob       CommissionSource = "pickup_job"
	SourceReferralSource  CommissionSource = "referral_source"
	SourceRepeatCustomer  CommissionSource = "repeat_customer"
)

var defaultSourceMultipliers = map[CommissionSource]float64{
	SourceSystemGenerated: 1.0,
	SourcePickupJob:       0.5,
	SourceReferralSource:  1.5,
	SourceRepeatCustomer:  0.8,
}

// ProductConfig is the per-product commission configuration. A product may
// override the tenant's base rate with its own and carry a custom source
// multiplier table.
type ProductConfig struct {
	CustomRateEnabled bool                         `json:"custom_rate_enabled"`
	CustomRate        float64                      `json:"custom_rate"`
	SourceMultipliers map[CommissionSource]float64 `json:"source_multipliers,omitempty"`
}

func (p ProductConfig) multiplierFor(source CommissionSource) (float64, bool) {
	if m, ok := p.SourceMultipliers[source]; ok {
		return m, true
	}
	m, ok := defaultSourceMultipliers[source]
	return m, ok
}

// VolumeDiscountDetail records which discount step applied and what it saved.
type VolumeDiscountDetail struct {
	Threshold      float64 `json:"threshold"`
	OriginalRate   float64 `json:"original_rate"`
	DiscountedRate float64 `json:"discounted_rate"`
	Savings        float64 `json:"savings"`
}

// CommissionCalculation is the result of one engine invocation.
type CommissionCalculation struct {
	BaseRate           float64               `json:"base_rate"`
	EffectiveRate      float64               `json:"effective_rate"`
	MonthlyRevenue     float64               `json:"monthly_revenue"`
	PlatformCommission float64               `json:"platform_commission"`
	ReferralCommission float64               `json:"referral_commission"`
	NetCommission      float64               `json:"net_commission"`
	VolumeDiscount     *VolumeDiscountDetail `json:"volume_discount,omitempty"`
}

// State is a tenant's accumulated revenue position. TotalRevenue and
// CommissionsPaid only ever grow, exactly once per processed period.
type State struct {
	TenantID             kernel.TenantID `json:"tenant_id"`
	MonthlyRevenue       float64         `json:"monthly_revenue"`
	TotalRevenue         float64         `json:"total_revenue"`
	CommissionsPaid      float64         `json:"commissions_paid"`
	CurrentEffectiveRate float64         `json:"current_effective_rate"`
	LastCalculatedAt     *time.Time      `json:"last_calculated_at,omitempty"`
}

// RecordKind distinguishes platform from referral commission records.
type RecordKind string

const (
	RecordPlatform RecordKind = "platform"
	RecordReferral RecordKind = "referral"
)

// RecordStatus tracks a commission record through downstream accounting.
type RecordStatus string

const (
	RecordPending RecordStatus = "pending"
	RecordPaid    RecordStatus = "paid"
)

// CommissionRecord is one commission line emitted for downstream accounting,
// tagged with the period it belongs to.
type CommissionRecord struct {
	ID         string             `json:"id"`
	TenantID   kernel.TenantID    `json:"tenant_id"`
	Kind       RecordKind         `json:"kind"`
	Amount     float64            `json:"amount"`
	Rate       float64            `json:"rate"`
	Period     kernel.Period      `json:"period"`
	ReferrerID *kernel.ReferrerID `json:"referrer_id,omitempty"`
	Status     RecordStatus       `json:"status"`
	CreatedAt  time.Time          `json:"created_at"`
}
