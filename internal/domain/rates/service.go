package rates

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// GetForOrg returns the organization's rate configuration, falling back to
// the stock defaults when the organization has never saved one.
func (s *Service) GetForOrg(ctx context.Context, orgID string) (*RateConfig, error) {
	rc, err := s.repo.GetByOrg(ctx, orgID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Defaults(orgID), nil
	}
	if err != nil {
		return nil, err
	}
	return rc, nil
}

// Save validates and upserts an organization's rate configuration.
func (s *Service) Save(ctx context.Context, rc *RateConfig) error {
	if rc.OrgID == "" {
		return fmt.Errorf("org_id is required")
	}
	if err := validate(rc); err != nil {
		return err
	}
	return s.repo.Upsert(ctx, rc)
}

func validate(rc *RateConfig) error {
	for _, f := range []struct {
		name string
		v    decimal.Decimal
	}{
		{"base_ambulance_rate", rc.BaseAmbulanceRate},
		{"mileage_rate", rc.MileageRate},
		{"paramedic_surcharge", rc.ParamedicSurcharge},
		{"cct_surcharge", rc.CCTSurcharge},
		{"bariatric_surcharge", rc.BariatricSurcharge},
		{"hems_charge", rc.HEMSCharge},
		{"extended_hourly_rate", rc.ExtendedHourlyRate},
		{"voice_rate_per_minute", rc.VoiceRatePerMinute},
		{"sms_rate_per_message", rc.SMSRatePerMessage},
	} {
		if f.v.IsNegative() {
			return fmt.Errorf("%s must not be negative", f.name)
		}
	}

	one := decimal.NewFromInt(1)
	for _, f := range []struct {
		name string
		v    decimal.Decimal
	}{
		{"night_surcharge_pct", rc.NightSurchargePct},
		{"holiday_surcharge_pct", rc.HolidaySurchargePct},
		{"primary_coverage_pct", rc.PrimaryCoveragePct},
		{"secondary_coverage_pct", rc.SecondaryCoveragePct},
		{"auto_pay_discount_pct", rc.AutoPayDiscountPct},
	} {
		if f.v.IsNegative() || f.v.GreaterThan(one) {
			return fmt.Errorf("%s must be a fraction between 0 and 1", f.name)
		}
	}

	if !(rc.FollowupDays15 > 0 && rc.FollowupDays15 < rc.FollowupDays30 &&
		rc.FollowupDays30 < rc.FollowupDays60 &&
		rc.FollowupDays60 < rc.FounderDecisionDays) {
		return fmt.Errorf("escalation thresholds must be strictly increasing and positive")
	}

	if rc.ShortTermMonths <= 0 || rc.StandardMonths <= rc.ShortTermMonths || rc.ExtendedMonths <= rc.StandardMonths {
		return fmt.Errorf("payment plan terms must be strictly increasing and positive")
	}
	if rc.ShortTermMaxBalance.IsNegative() || rc.StandardMaxBalance.LessThanOrEqual(rc.ShortTermMaxBalance) {
		return fmt.Errorf("payment plan tier balance boundaries must be increasing")
	}

	return nil
}
