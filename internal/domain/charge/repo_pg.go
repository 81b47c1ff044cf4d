package charge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
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

const chargeCols = `id, org_id, incident_id, transport_type,
	base_ambulance_fee, mileage_charge, paramedic_surcharge, cct_surcharge,
	bariatric_surcharge, hems_charge, night_surcharge, holiday_surcharge,
	extended_time_charge, procedure_charges, communication_costs,
	subtotal, total_charge, breakdown,
	estimated_coverage, patient_responsibility, claim_ready, missing_fields,
	billing_status, locked, created_at, updated_at`

func scanChargeRecord(row pgx.Row) (*ChargeRecord, error) {
	var rec ChargeRecord
	var breakdown, missing []byte
	err := row.Scan(&rec.ID, &rec.OrgID, &rec.IncidentID, &rec.TransportType,
		&rec.BaseAmbulanceFee, &rec.MileageCharge, &rec.ParamedicSurcharge, &rec.CCTSurcharge,
		&rec.BariatricSurcharge, &rec.HEMSCharge, &rec.NightSurcharge, &rec.HolidaySurcharge,
		&rec.ExtendedTimeCharge, &rec.ProcedureCharges, &rec.CommunicationCosts,
		&rec.Subtotal, &rec.TotalCharge, &breakdown,
		&rec.EstimatedCoverage, &rec.PatientResponsibility, &rec.ClaimReady, &missing,
		&rec.BillingStatus, &rec.Locked, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(breakdown) > 0 {
		if err := json.Unmarshal(breakdown, &rec.Breakdown); err != nil {
			return nil, fmt.Errorf("decode breakdown: %w", err)
		}
	}
	if len(missing) > 0 {
		if err := json.Unmarshal(missing, &rec.MissingFields); err != nil {
			return nil, fmt.Errorf("decode missing_fields: %w", err)
		}
	}
	return &rec, nil
}

func (r *repoPG) Create(ctx context.Context, rec *ChargeRecord) error {
	rec.ID = uuid.New()
	breakdown, err := json.Marshal(rec.Breakdown)
	if err != nil {
		return fmt.Errorf("encode breakdown: %w", err)
	}
	missing, err := json.Marshal(rec.MissingFields)
	if err != nil {
		return fmt.Errorf("encode missing_fields: %w", err)
	}
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO charge_record (id, org_id, incident_id, transport_type,
			base_ambulance_fee, mileage_charge, paramedic_surcharge, cct_surcharge,
			bariatric_surcharge, hems_charge, night_surcharge, holiday_surcharge,
			extended_time_charge, procedure_charges, communication_costs,
			subtotal, total_charge, breakdown,
			estimated_coverage, patient_responsibility, claim_ready, missing_fields,
			billing_status, locked)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24)`,
		rec.ID, rec.OrgID, rec.IncidentID, rec.TransportType,
		rec.BaseAmbulanceFee, rec.MileageCharge, rec.ParamedicSurcharge, rec.CCTSurcharge,
		rec.BariatricSurcharge, rec.HEMSCharge, rec.NightSurcharge, rec.HolidaySurcharge,
		rec.ExtendedTimeCharge, rec.ProcedureCharges, rec.CommunicationCosts,
		rec.Subtotal, rec.TotalCharge, breakdown,
		rec.EstimatedCoverage, rec.PatientResponsibility, rec.ClaimReady, missing,
		rec.BillingStatus, rec.Locked)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrDuplicateCharge
		}
		return err
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*ChargeRecord, error) {
	return scanChargeRecord(r.conn(ctx).QueryRow(ctx,
		`SELECT `+chargeCols+` FROM charge_record WHERE id = $1`, id))
}

func (r *repoPG) GetByIncident(ctx context.Context, orgID, incidentID string) (*ChargeRecord, error) {
	return scanChargeRecord(r.conn(ctx).QueryRow(ctx,
		`SELECT `+chargeCols+` FROM charge_record WHERE org_id = $1 AND incident_id = $2`, orgID, incidentID))
}

func (r *repoPG) Update(ctx context.Context, rec *ChargeRecord) error {
	breakdown, err := json.Marshal(rec.Breakdown)
	if err != nil {
		return fmt.Errorf("encode breakdown: %w", err)
	}
	missing, err := json.Marshal(rec.MissingFields)
	if err != nil {
		return fmt.Errorf("encode missing_fields: %w", err)
	}
	// Locked records are immutable at the SQL level as well.
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE charge_record SET transport_type=$2,
			base_ambulance_fee=$3, mileage_charge=$4, paramedic_surcharge=$5, cct_surcharge=$6,
			bariatric_surcharge=$7, hems_charge=$8, night_surcharge=$9, holiday_surcharge=$10,
			extended_time_charge=$11, procedure_charges=$12, communication_costs=$13,
			subtotal=$14, total_charge=$15, breakdown=$16,
			estimated_coverage=$17, patient_responsibility=$18, claim_ready=$19, missing_fields=$20,
			billing_status=$21, locked=$22, updated_at=NOW()
		WHERE id = $1 AND (locked = FALSE OR $22 = TRUE)`,
		rec.ID, rec.TransportType,
		rec.BaseAmbulanceFee, rec.MileageCharge, rec.ParamedicSurcharge, rec.CCTSurcharge,
		rec.BariatricSurcharge, rec.HEMSCharge, rec.NightSurcharge, rec.HolidaySurcharge,
		rec.ExtendedTimeCharge, rec.ProcedureCharges, rec.CommunicationCosts,
		rec.Subtotal, rec.TotalCharge, breakdown,
		rec.EstimatedCoverage, rec.PatientResponsibility, rec.ClaimReady, missing,
		rec.BillingStatus, rec.Locked)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordLocked
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM charge_record WHERE id = $1`, id)
	return err
}

func (r *repoPG) ListByOrg(ctx context.Context, orgID string, limit, offset int) ([]*ChargeRecord, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM charge_record WHERE org_id = $1`, orgID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+chargeCols+` FROM charge_record WHERE org_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		orgID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*ChargeRecord
	for rows.Next() {
		rec, err := scanChargeRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, rec)
	}
	return items, total, rows.Err()
}
