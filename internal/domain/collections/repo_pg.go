package collections

import (
	"context"
	"fmt"

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

func conn(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return pool
}

// =========== Account Repository ===========

type accountRepoPG struct{ pool *pgxpool.Pool }

func NewAccountRepoPG(pool *pgxpool.Pool) AccountRepository { return &accountRepoPG{pool: pool} }

const accountCols = `id, org_id, patient_ref, patient_contact, statement_ref,
	balance_due, due_date, current_state, payment_pause_active,
	escalation_hold_until, requires_founder_decision, resolved_at,
	created_at, updated_at`

func scanAccount(row pgx.Row) (*CollectionsAccount, error) {
	var a CollectionsAccount
	err := row.Scan(&a.ID, &a.OrgID, &a.PatientRef, &a.PatientContact, &a.StatementRef,
		&a.BalanceDue, &a.DueDate, &a.CurrentState, &a.PaymentPauseActive,
		&a.EscalationHoldUntil, &a.RequiresFounderDecision, &a.ResolvedAt,
		&a.CreatedAt, &a.UpdatedAt)
	return &a, err
}

func (r *accountRepoPG) Create(ctx context.Context, a *CollectionsAccount) error {
	a.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO collections_account (id, org_id, patient_ref, patient_contact, statement_ref,
			balance_due, due_date, current_state, payment_pause_active,
			escalation_hold_until, requires_founder_decision, resolved_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		a.ID, a.OrgID, a.PatientRef, a.PatientContact, a.StatementRef,
		a.BalanceDue, a.DueDate, a.CurrentState, a.PaymentPauseActive,
		a.EscalationHoldUntil, a.RequiresFounderDecision, a.ResolvedAt)
	return err
}

func (r *accountRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*CollectionsAccount, error) {
	return scanAccount(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+accountCols+` FROM collections_account WHERE id = $1`, id))
}

func (r *accountRepoPG) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*CollectionsAccount, error) {
	return scanAccount(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+accountCols+` FROM collections_account WHERE id = $1 FOR UPDATE`, id))
}

func (r *accountRepoPG) Update(ctx context.Context, a *CollectionsAccount) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE collections_account SET balance_due=$2, current_state=$3,
			payment_pause_active=$4, escalation_hold_until=$5,
			requires_founder_decision=$6, resolved_at=$7, updated_at=NOW()
		WHERE id = $1`,
		a.ID, a.BalanceDue, a.CurrentState,
		a.PaymentPauseActive, a.EscalationHoldUntil,
		a.RequiresFounderDecision, a.ResolvedAt)
	return err
}

func (r *accountRepoPG) ListByOrg(ctx context.Context, orgID string, state State, limit, offset int) ([]*CollectionsAccount, int, error) {
	where := `WHERE org_id = $1`
	args := []interface{}{orgID}
	if state != "" {
		where += ` AND current_state = $2`
		args = append(args, state)
	}

	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM collections_account `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	n := len(args)
	rows, err := conn(ctx, r.pool).Query(ctx,
		fmt.Sprintf(`SELECT %s FROM collections_account %s ORDER BY due_date ASC LIMIT $%d OFFSET $%d`,
			accountCols, where, n-1, n), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*CollectionsAccount
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

// ListSweepable returns accounts still subject to automated escalation:
// not terminal, not on a plan, not already frozen at the founder gate.
func (r *accountRepoPG) ListSweepable(ctx context.Context, limit int) ([]uuid.UUID, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT id FROM collections_account
		WHERE resolved_at IS NULL
		  AND current_state NOT IN ('written_off', 'payment_plan_active', 'founder_decision_90')
		ORDER BY due_date ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// =========== Policy Repository ===========

type policyRepoPG struct{ pool *pgxpool.Pool }

func NewPolicyRepoPG(pool *pgxpool.Pool) PolicyRepository { return &policyRepoPG{pool: pool} }

const policyCols = `id, org_id, policy_version, internal_only, never_external_collections,
	immutable, approved_by, approved_at, locked_at, created_at`

func scanPolicy(row pgx.Row) (*CollectionsPolicy, error) {
	var p CollectionsPolicy
	err := row.Scan(&p.ID, &p.OrgID, &p.PolicyVersion, &p.InternalOnly, &p.NeverExternalCollections,
		&p.Immutable, &p.ApprovedBy, &p.ApprovedAt, &p.LockedAt, &p.CreatedAt)
	return &p, err
}

func (r *policyRepoPG) Create(ctx context.Context, p *CollectionsPolicy) error {
	p.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO collections_policy (id, org_id, policy_version, internal_only,
			never_external_collections, immutable, approved_by, approved_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		p.ID, p.OrgID, p.PolicyVersion, p.InternalOnly,
		p.NeverExternalCollections, p.Immutable, p.ApprovedBy, p.ApprovedAt)
	return err
}

func (r *policyRepoPG) GetActive(ctx context.Context, orgID string) (*CollectionsPolicy, error) {
	return scanPolicy(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+policyCols+` FROM collections_policy WHERE org_id = $1
		 ORDER BY policy_version DESC LIMIT 1`, orgID))
}

func (r *policyRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*CollectionsPolicy, error) {
	return scanPolicy(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+policyCols+` FROM collections_policy WHERE id = $1`, id))
}

func (r *policyRepoPG) LatestVersion(ctx context.Context, orgID string) (int, error) {
	var v int
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COALESCE(MAX(policy_version), 0) FROM collections_policy WHERE org_id = $1`, orgID).Scan(&v)
	return v, err
}

// SetLocked freezes a policy version. The guard in SQL makes a second lock
// attempt a no-op failure rather than a silent success.
func (r *policyRepoPG) SetLocked(ctx context.Context, id uuid.UUID) error {
	tag, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE collections_policy SET locked_at = NOW() WHERE id = $1 AND locked_at IS NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPolicyLocked
	}
	return nil
}

func (r *policyRepoPG) ListByOrg(ctx context.Context, orgID string) ([]*CollectionsPolicy, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+policyCols+` FROM collections_policy WHERE org_id = $1 ORDER BY policy_version DESC`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*CollectionsPolicy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

// =========== Write-off Repository ===========

type writeOffRepoPG struct{ pool *pgxpool.Pool }

func NewWriteOffRepoPG(pool *pgxpool.Pool) WriteOffRepository { return &writeOffRepoPG{pool: pool} }

func (r *writeOffRepoPG) Create(ctx context.Context, w *WriteOffRecord) error {
	w.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO write_off_record (id, org_id, account_id, original_balance,
			write_off_amount, reason, approved_by, approved_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		w.ID, w.OrgID, w.AccountID, w.OriginalBalance,
		w.WriteOffAmount, w.Reason, w.ApprovedBy, w.ApprovedAt)
	return err
}

func (r *writeOffRepoPG) ListByOrg(ctx context.Context, orgID string, limit, offset int) ([]*WriteOffRecord, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM write_off_record WHERE org_id = $1`, orgID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT id, org_id, account_id, original_balance, write_off_amount, reason, approved_by, approved_at
		FROM write_off_record WHERE org_id = $1 ORDER BY approved_at DESC LIMIT $2 OFFSET $3`,
		orgID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*WriteOffRecord
	for rows.Next() {
		var w WriteOffRecord
		if err := rows.Scan(&w.ID, &w.OrgID, &w.AccountID, &w.OriginalBalance,
			&w.WriteOffAmount, &w.Reason, &w.ApprovedBy, &w.ApprovedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, &w)
	}
	return items, total, rows.Err()
}
