package rates

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/emsops/emsops/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const rateCols = `id, org_id, base_ambulance_rate, mileage_rate, paramedic_surcharge,
	cct_surcharge, bariatric_surcharge, hems_charge,
	night_surcharge_pct, holiday_surcharge_pct, extended_hourly_rate,
	voice_rate_per_minute, sms_rate_per_message,
	primary_coverage_pct, secondary_coverage_pct,
	followup_days_15, followup_days_30, followup_days_60, founder_decision_days,
	short_term_max_balance, standard_max_balance,
	short_term_months, standard_months, extended_months, auto_pay_discount_pct,
	created_at, updated_at`

func scanRateConfig(row pgx.Row) (*RateConfig, error) {
	var rc RateConfig
	err := row.Scan(&rc.ID, &rc.OrgID, &rc.BaseAmbulanceRate, &rc.MileageRate, &rc.ParamedicSurcharge,
		&rc.CCTSurcharge, &rc.BariatricSurcharge, &rc.HEMSCharge,
		&rc.NightSurchargePct, &rc.HolidaySurchargePct, &rc.ExtendedHourlyRate,
		&rc.VoiceRatePerMinute, &rc.SMSRatePerMessage,
		&rc.PrimaryCoveragePct, &rc.SecondaryCoveragePct,
		&rc.FollowupDays15, &rc.FollowupDays30, &rc.FollowupDays60, &rc.FounderDecisionDays,
		&rc.ShortTermMaxBalance, &rc.StandardMaxBalance,
		&rc.ShortTermMonths, &rc.StandardMonths, &rc.ExtendedMonths, &rc.AutoPayDiscountPct,
		&rc.CreatedAt, &rc.UpdatedAt)
	return &rc, err
}

func (r *repoPG) GetByOrg(ctx context.Context, orgID string) (*RateConfig, error) {
	return scanRateConfig(r.conn(ctx).QueryRow(ctx,
		`SELECT `+rateCols+` FROM rate_config WHERE org_id = $1`, orgID))
}

func (r *repoPG) Upsert(ctx context.Context, rc *RateConfig) error {
	if rc.ID == uuid.Nil {
		rc.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO rate_config (id, org_id, base_ambulance_rate, mileage_rate, paramedic_surcharge,
			cct_surcharge, bariatric_surcharge, hems_charge,
			night_surcharge_pct, holiday_surcharge_pct, extended_hourly_rate,
			voice_rate_per_minute, sms_rate_per_message,
			primary_coverage_pct, secondary_coverage_pct,
			followup_days_15, followup_days_30, followup_days_60, founder_decision_days,
			short_term_max_balance, standard_max_balance,
			short_term_months, standard_months, extended_months, auto_pay_discount_pct)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25)
		ON CONFLICT (org_id) DO UPDATE SET
			base_ambulance_rate=EXCLUDED.base_ambulance_rate,
			mileage_rate=EXCLUDED.mileage_rate,
			paramedic_surcharge=EXCLUDED.paramedic_surcharge,
			cct_surcharge=EXCLUDED.cct_surcharge,
			bariatric_surcharge=EXCLUDED.bariatric_surcharge,
			hems_charge=EXCLUDED.hems_charge,
			night_surcharge_pct=EXCLUDED.night_surcharge_pct,
			holiday_surcharge_pct=EXCLUDED.holiday_surcharge_pct,
			extended_hourly_rate=EXCLUDED.extended_hourly_rate,
			voice_rate_per_minute=EXCLUDED.voice_rate_per_minute,
			sms_rate_per_message=EXCLUDED.sms_rate_per_message,
			primary_coverage_pct=EXCLUDED.primary_coverage_pct,
			secondary_coverage_pct=EXCLUDED.secondary_coverage_pct,
			followup_days_15=EXCLUDED.followup_days_15,
			followup_days_30=EXCLUDED.followup_days_30,
			followup_days_60=EXCLUDED.followup_days_60,
			founder_decision_days=EXCLUDED.founder_decision_days,
			short_term_max_balance=EXCLUDED.short_term_max_balance,
			standard_max_balance=EXCLUDED.standard_max_balance,
			short_term_months=EXCLUDED.short_term_months,
			standard_months=EXCLUDED.standard_months,
			extended_months=EXCLUDED.extended_months,
			auto_pay_discount_pct=EXCLUDED.auto_pay_discount_pct,
			updated_at=NOW()`,
		rc.ID, rc.OrgID, rc.BaseAmbulanceRate, rc.MileageRate, rc.ParamedicSurcharge,
		rc.CCTSurcharge, rc.BariatricSurcharge, rc.HEMSCharge,
		rc.NightSurchargePct, rc.HolidaySurchargePct, rc.ExtendedHourlyRate,
		rc.VoiceRatePerMinute, rc.SMSRatePerMessage,
		rc.PrimaryCoveragePct, rc.SecondaryCoveragePct,
		rc.FollowupDays15, rc.FollowupDays30, rc.FollowupDays60, rc.FounderDecisionDays,
		rc.ShortTermMaxBalance, rc.StandardMaxBalance,
		rc.ShortTermMonths, rc.StandardMonths, rc.ExtendedMonths, rc.AutoPayDiscountPct)
	return err
}
