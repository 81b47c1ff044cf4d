package paymentplan

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrConsentRequired is returned when auto-pay is requested without an
// explicit consent capture.
var ErrConsentRequired = errors.New("auto-pay requires explicit consent")

// ErrNotPending is returned when accepting a plan that is not awaiting
// acceptance.
var ErrNotPending = errors.New("payment plan is not pending acceptance")

// Tier identifies a payment plan term length.
type Tier string

const (
	TierShortTerm Tier = "short_term"
	TierStandard  Tier = "standard"
	TierExtended  Tier = "extended"
)

// Plan statuses. A plan becomes active only on explicit acceptance.
const (
	StatusPending   = "pending"
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusDefaulted = "defaulted"
)

// PaymentPlan is a tiered installment arrangement against an outstanding
// balance.
type PaymentPlan struct {
	ID                   uuid.UUID       `db:"id" json:"id"`
	OrgID                string          `db:"org_id" json:"org_id"`
	AccountID            uuid.UUID       `db:"account_id" json:"account_id"`
	Tier                 Tier            `db:"tier" json:"tier"`
	TotalAmount          decimal.Decimal `db:"total_amount" json:"total_amount"`
	DownPayment          decimal.Decimal `db:"down_payment" json:"down_payment"`
	RemainingBalance     decimal.Decimal `db:"remaining_balance" json:"remaining_balance"`
	InstallmentAmount    decimal.Decimal `db:"installment_amount" json:"installment_amount"`
	InstallmentFrequency string          `db:"installment_frequency" json:"installment_frequency"`
	TotalInstallments    int             `db:"total_installments" json:"total_installments"`
	InstallmentsPaid     int             `db:"installments_paid" json:"installments_paid"`
	AutoPayEnabled       bool            `db:"auto_pay_enabled" json:"auto_pay_enabled"`
	AutoPayDiscount      decimal.Decimal `db:"auto_pay_discount" json:"auto_pay_discount"`
	Status               string          `db:"status" json:"status"`
	AcceptedBy           *string         `db:"accepted_by" json:"accepted_by,omitempty"`
	AcceptedAt           *time.Time      `db:"accepted_at" json:"accepted_at,omitempty"`
	ConsentCapturedAt    *time.Time      `db:"consent_captured_at" json:"consent_captured_at,omitempty"`
	CreatedAt            time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time       `db:"updated_at" json:"updated_at"`
}
