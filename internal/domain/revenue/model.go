// Package revenue exposes read-only KPI rollups over the billing and
// collections tables. Nothing here mutates state.
package revenue

import (
	"time"

	"github.com/shopspring/decimal"
)

// OutstandingSummary totals the balances still being collected.
type OutstandingSummary struct {
	OpenAccounts       int             `json:"open_accounts"`
	OutstandingBalance decimal.Decimal `json:"outstanding_balance"`
	OldestDueDate      *time.Time      `json:"oldest_due_date,omitempty"`
}

// StateCount is one row of the accounts-per-state rollup.
type StateCount struct {
	State   string          `json:"state"`
	Count   int             `json:"count"`
	Balance decimal.Decimal `json:"balance"`
}

// PlanStatusCount is one row of the payment-plan rollup.
type PlanStatusCount struct {
	Status string          `json:"status"`
	Count  int             `json:"count"`
	Total  decimal.Decimal `json:"total"`
}

// WriteOffPeriod is write-off volume aggregated per calendar month.
type WriteOffPeriod struct {
	Period time.Time       `json:"period"`
	Count  int             `json:"count"`
	Total  decimal.Decimal `json:"total"`
}

// ChargeSummary totals charge records by status.
type ChargeSummary struct {
	Status string          `json:"status"`
	Count  int             `json:"count"`
	Total  decimal.Decimal `json:"total"`
}

// Snapshot bundles the full KPI set for one organization.
type Snapshot struct {
	OrgID       string            `json:"org_id"`
	GeneratedAt time.Time         `json:"generated_at"`
	Outstanding OutstandingSummary `json:"outstanding"`
	ByState     []StateCount      `json:"accounts_by_state"`
	PlanStatus  []PlanStatusCount `json:"plans_by_status"`
	Charges     []ChargeSummary   `json:"charges_by_status"`
}
