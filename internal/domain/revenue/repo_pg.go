package revenue

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) Outstanding(ctx context.Context, orgID string) (OutstandingSummary, error) {
	var s OutstandingSummary
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(balance_due), 0),
		       MIN(due_date)
		FROM collections_account
		WHERE org_id = $1
		  AND resolved_at IS NULL
		  AND current_state <> 'written_off'`, orgID).
		Scan(&s.OpenAccounts, &s.OutstandingBalance, &s.OldestDueDate)
	return s, err
}

func (r *repoPG) AccountsByState(ctx context.Context, orgID string) ([]StateCount, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT current_state, COUNT(*), COALESCE(SUM(balance_due), 0)
		FROM collections_account
		WHERE org_id = $1
		GROUP BY current_state
		ORDER BY current_state`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []StateCount
	for rows.Next() {
		var sc StateCount
		if err := rows.Scan(&sc.State, &sc.Count, &sc.Balance); err != nil {
			return nil, err
		}
		items = append(items, sc)
	}
	return items, rows.Err()
}

func (r *repoPG) PlansByStatus(ctx context.Context, orgID string) ([]PlanStatusCount, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT status, COUNT(*), COALESCE(SUM(total_amount), 0)
		FROM payment_plan
		WHERE org_id = $1
		GROUP BY status
		ORDER BY status`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PlanStatusCount
	for rows.Next() {
		var pc PlanStatusCount
		if err := rows.Scan(&pc.Status, &pc.Count, &pc.Total); err != nil {
			return nil, err
		}
		items = append(items, pc)
	}
	return items, rows.Err()
}

func (r *repoPG) WriteOffsByPeriod(ctx context.Context, orgID string, from, to time.Time) ([]WriteOffPeriod, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT date_trunc('month', approved_at) AS period,
		       COUNT(*),
		       COALESCE(SUM(write_off_amount), 0)
		FROM write_off_record
		WHERE org_id = $1 AND approved_at >= $2 AND approved_at < $3
		GROUP BY period
		ORDER BY period`, orgID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []WriteOffPeriod
	for rows.Next() {
		var wp WriteOffPeriod
		if err := rows.Scan(&wp.Period, &wp.Count, &wp.Total); err != nil {
			return nil, err
		}
		items = append(items, wp)
	}
	return items, rows.Err()
}

func (r *repoPG) ChargesByStatus(ctx context.Context, orgID string) ([]ChargeSummary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT status, COUNT(*), COALESCE(SUM(total_charge), 0)
		FROM charge_record
		WHERE org_id = $1
		GROUP BY status
		ORDER BY status`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ChargeSummary
	for rows.Next() {
		var cs ChargeSummary
		if err := rows.Scan(&cs.Status, &cs.Count, &cs.Total); err != nil {
			return nil, err
		}
		items = append(items, cs)
	}
	return items, rows.Err()
}
