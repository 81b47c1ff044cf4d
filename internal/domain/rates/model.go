package rates

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RateConfig holds an organization's billing constants. It is owned by the
// organization and read-only to the charge calculator: every computation
// receives the config explicitly rather than reading shared state.
type RateConfig struct {
	ID    uuid.UUID `db:"id" json:"id"`
	OrgID string    `db:"org_id" json:"org_id"`

	BaseAmbulanceRate  decimal.Decimal `db:"base_ambulance_rate" json:"base_ambulance_rate"`
	MileageRate        decimal.Decimal `db:"mileage_rate" json:"mileage_rate"`
	ParamedicSurcharge decimal.Decimal `db:"paramedic_surcharge" json:"paramedic_surcharge"`
	CCTSurcharge       decimal.Decimal `db:"cct_surcharge" json:"cct_surcharge"`
	BariatricSurcharge decimal.Decimal `db:"bariatric_surcharge" json:"bariatric_surcharge"`
	HEMSCharge         decimal.Decimal `db:"hems_charge" json:"hems_charge"`

	// Percentages expressed as fractions (0.15 = 15%).
	NightSurchargePct   decimal.Decimal `db:"night_surcharge_pct" json:"night_surcharge_pct"`
	HolidaySurchargePct decimal.Decimal `db:"holiday_surcharge_pct" json:"holiday_surcharge_pct"`

	ExtendedHourlyRate decimal.Decimal `db:"extended_hourly_rate" json:"extended_hourly_rate"`
	VoiceRatePerMinute decimal.Decimal `db:"voice_rate_per_minute" json:"voice_rate_per_minute"`
	SMSRatePerMessage  decimal.Decimal `db:"sms_rate_per_message" json:"sms_rate_per_message"`

	// Insurance estimation fractions. Placeholders for a real eligibility
	// check, kept configurable per organization.
	PrimaryCoveragePct   decimal.Decimal `db:"primary_coverage_pct" json:"primary_coverage_pct"`
	SecondaryCoveragePct decimal.Decimal `db:"secondary_coverage_pct" json:"secondary_coverage_pct"`

	// Collections escalation day thresholds.
	FollowupDays15       int `db:"followup_days_15" json:"followup_days_15"`
	FollowupDays30       int `db:"followup_days_30" json:"followup_days_30"`
	FollowupDays60       int `db:"followup_days_60" json:"followup_days_60"`
	FounderDecisionDays  int `db:"founder_decision_days" json:"founder_decision_days"`

	// Payment plan tier boundaries and terms.
	ShortTermMaxBalance decimal.Decimal `db:"short_term_max_balance" json:"short_term_max_balance"`
	StandardMaxBalance  decimal.Decimal `db:"standard_max_balance" json:"standard_max_balance"`
	ShortTermMonths     int             `db:"short_term_months" json:"short_term_months"`
	StandardMonths      int             `db:"standard_months" json:"standard_months"`
	ExtendedMonths      int             `db:"extended_months" json:"extended_months"`
	AutoPayDiscountPct  decimal.Decimal `db:"auto_pay_discount_pct" json:"auto_pay_discount_pct"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Defaults returns the stock rate configuration applied when an organization
// has not overridden its rates.
func Defaults(orgID string) *RateConfig {
	return &RateConfig{
		OrgID:                orgID,
		BaseAmbulanceRate:    decimal.NewFromInt(450),
		MileageRate:          decimal.NewFromInt(12),
		ParamedicSurcharge:   decimal.NewFromInt(75),
		CCTSurcharge:         decimal.NewFromInt(200),
		BariatricSurcharge:   decimal.NewFromInt(150),
		HEMSCharge:           decimal.NewFromInt(5000),
		NightSurchargePct:    decimal.RequireFromString("0.15"),
		HolidaySurchargePct:  decimal.RequireFromString("0.20"),
		ExtendedHourlyRate:   decimal.NewFromInt(120),
		VoiceRatePerMinute:   decimal.RequireFromString("0.50"),
		SMSRatePerMessage:    decimal.RequireFromString("0.10"),
		PrimaryCoveragePct:   decimal.RequireFromString("0.80"),
		SecondaryCoveragePct: decimal.RequireFromString("0.50"),
		FollowupDays15:       15,
		FollowupDays30:       30,
		FollowupDays60:       60,
		FounderDecisionDays:  90,
		ShortTermMaxBalance:  decimal.NewFromInt(500),
		StandardMaxBalance:   decimal.NewFromInt(2500),
		ShortTermMonths:      3,
		StandardMonths:       6,
		ExtendedMonths:       12,
		AutoPayDiscountPct:   decimal.RequireFromString("0.02"),
	}
}
