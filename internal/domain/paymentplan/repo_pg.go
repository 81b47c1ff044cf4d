package paymentplan

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

const planCols = `id, org_id, account_id, tier, total_amount, down_payment,
	remaining_balance, installment_amount, installment_frequency,
	total_installments, installments_paid, auto_pay_enabled, auto_pay_discount,
	status, accepted_by, accepted_at, consent_captured_at, created_at, updated_at`

func scanPlan(row pgx.Row) (*PaymentPlan, error) {
	var p PaymentPlan
	err := row.Scan(&p.ID, &p.OrgID, &p.AccountID, &p.Tier, &p.TotalAmount, &p.DownPayment,
		&p.RemainingBalance, &p.InstallmentAmount, &p.InstallmentFrequency,
		&p.TotalInstallments, &p.InstallmentsPaid, &p.AutoPayEnabled, &p.AutoPayDiscount,
		&p.Status, &p.AcceptedBy, &p.AcceptedAt, &p.ConsentCapturedAt, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *repoPG) Create(ctx context.Context, p *PaymentPlan) error {
	p.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO payment_plan (id, org_id, account_id, tier, total_amount, down_payment,
			remaining_balance, installment_amount, installment_frequency,
			total_installments, installments_paid, auto_pay_enabled, auto_pay_discount, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		p.ID, p.OrgID, p.AccountID, p.Tier, p.TotalAmount, p.DownPayment,
		p.RemainingBalance, p.InstallmentAmount, p.InstallmentFrequency,
		p.TotalInstallments, p.InstallmentsPaid, p.AutoPayEnabled, p.AutoPayDiscount, p.Status)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*PaymentPlan, error) {
	return scanPlan(r.conn(ctx).QueryRow(ctx,
		`SELECT `+planCols+` FROM payment_plan WHERE id = $1`, id))
}

func (r *repoPG) GetActiveByAccount(ctx context.Context, accountID uuid.UUID) (*PaymentPlan, error) {
	return scanPlan(r.conn(ctx).QueryRow(ctx,
		`SELECT `+planCols+` FROM payment_plan WHERE account_id = $1 AND status = 'active'
		 ORDER BY created_at DESC LIMIT 1`, accountID))
}

func (r *repoPG) Update(ctx context.Context, p *PaymentPlan) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE payment_plan SET remaining_balance=$2, installments_paid=$3, status=$4,
			accepted_by=$5, accepted_at=$6, consent_captured_at=$7, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.RemainingBalance, p.InstallmentsPaid, p.Status,
		p.AcceptedBy, p.AcceptedAt, p.ConsentCapturedAt)
	return err
}

func (r *repoPG) ListByOrg(ctx context.Context, orgID string, limit, offset int) ([]*PaymentPlan, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM payment_plan WHERE org_id = $1`, orgID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+planCols+` FROM payment_plan WHERE org_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		orgID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*PaymentPlan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}
