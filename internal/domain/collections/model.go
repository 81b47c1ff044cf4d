package collections

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Governance errors. Policy violations are fatal and loudly logged;
// ErrDecisionPending is a retryable signal, not a failure.
var (
	ErrPolicyLocked      = errors.New("collections policy is locked and cannot be modified")
	ErrPolicyInvalid     = errors.New("collections policy must be internal-only with no external collections path")
	ErrDecisionPending   = errors.New("account awaits a founder decision")
	ErrApproverRequired  = errors.New("write-off requires a named approver")
	ErrInvalidTransition = errors.New("disallowed collections state transition")
	ErrAccountTerminal   = errors.New("account is in a terminal state")
)

// State is a collections account's escalation state. The full set is
// enumerated here; no state for external collections referral exists, which
// is how the never-external guarantee is enforced structurally.
type State string

const (
	StateInitial           State = "initial"
	StateFollowup15        State = "followup_15"
	StateFollowup30        State = "followup_30"
	StateFollowup60        State = "followup_60"
	StateFounderDecision90 State = "founder_decision_90"
	StatePaymentPlanActive State = "payment_plan_active"
	StateWrittenOff        State = "written_off"
)

// Valid reports whether s is one of the enumerated states.
func (s State) Valid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

// CollectionsPolicy is the versioned, lockable governance record. A policy
// change is a new version; once locked_at is set, no field may change.
type CollectionsPolicy struct {
	ID                       uuid.UUID  `db:"id" json:"id"`
	OrgID                    string     `db:"org_id" json:"org_id"`
	PolicyVersion            int        `db:"policy_version" json:"policy_version"`
	InternalOnly             bool       `db:"internal_only" json:"internal_only"`
	NeverExternalCollections bool       `db:"never_external_collections" json:"never_external_collections"`
	Immutable                bool       `db:"immutable" json:"immutable"`
	ApprovedBy               string     `db:"approved_by" json:"approved_by"`
	ApprovedAt               time.Time  `db:"approved_at" json:"approved_at"`
	LockedAt                 *time.Time `db:"locked_at" json:"locked_at,omitempty"`
	CreatedAt                time.Time  `db:"created_at" json:"created_at"`
}

// Locked reports whether the policy has been frozen.
func (p *CollectionsPolicy) Locked() bool { return p.LockedAt != nil }

// Validate enforces the structural guarantees every policy version must
// carry.
func (p *CollectionsPolicy) Validate() error {
	if !p.InternalOnly || !p.NeverExternalCollections {
		return ErrPolicyInvalid
	}
	return nil
}

// CollectionsAccount tracks one past-due statement through escalation.
// days_since_due is always derived from the due date, never stored.
type CollectionsAccount struct {
	ID                      uuid.UUID       `db:"id" json:"id"`
	OrgID                   string          `db:"org_id" json:"org_id"`
	PatientRef              string          `db:"patient_ref" json:"patient_ref"`
	PatientContact          string          `db:"patient_contact" json:"patient_contact,omitempty"`
	StatementRef            string          `db:"statement_ref" json:"statement_ref"`
	BalanceDue              decimal.Decimal `db:"balance_due" json:"balance_due"`
	DueDate                 time.Time       `db:"due_date" json:"due_date"`
	CurrentState            State           `db:"current_state" json:"current_state"`
	PaymentPauseActive      bool            `db:"payment_pause_active" json:"payment_pause_active"`
	EscalationHoldUntil     *time.Time      `db:"escalation_hold_until" json:"escalation_hold_until,omitempty"`
	RequiresFounderDecision bool            `db:"requires_founder_decision" json:"requires_founder_decision"`
	ResolvedAt              *time.Time      `db:"resolved_at" json:"resolved_at,omitempty"`
	CreatedAt               time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt               time.Time       `db:"updated_at" json:"updated_at"`
}

// DaysSinceDue derives the escalation clock from the due date.
func (a *CollectionsAccount) DaysSinceDue(now time.Time) int {
	d := int(now.Sub(a.DueDate).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}

// Terminal reports whether the account has left the collections lifecycle.
func (a *CollectionsAccount) Terminal() bool {
	return a.CurrentState == StateWrittenOff || a.ResolvedAt != nil
}

// Paused reports whether the escalation clock is frozen at the given time.
func (a *CollectionsAccount) Paused(now time.Time) bool {
	if a.PaymentPauseActive {
		return true
	}
	return a.EscalationHoldUntil != nil && now.Before(*a.EscalationHoldUntil)
}

// WriteOffRecord is the append-only audit entry for a founder-approved
// write-off. It is never mutated after creation.
type WriteOffRecord struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	OrgID           string          `db:"org_id" json:"org_id"`
	AccountID       uuid.UUID       `db:"account_id" json:"account_id"`
	OriginalBalance decimal.Decimal `db:"original_balance" json:"original_balance"`
	WriteOffAmount  decimal.Decimal `db:"write_off_amount" json:"write_off_amount"`
	Reason          string          `db:"reason" json:"reason"`
	ApprovedBy      string          `db:"approved_by" json:"approved_by"`
	ApprovedAt      time.Time       `db:"approved_at" json:"approved_at"`
}
