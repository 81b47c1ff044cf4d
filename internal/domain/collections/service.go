package collections

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/emsops/emsops/internal/domain/rates"
	"github.com/emsops/emsops/internal/platform/notification"
)

// RateSource supplies the organization's escalation thresholds.
type RateSource interface {
	GetForOrg(ctx context.Context, orgID string) (*rates.RateConfig, error)
}

// Notifier delivers fire-and-forget patient notices.
type Notifier interface {
	Dispatch(ctx context.Context, templateID, recipient string, data map[string]string)
}

// TxRunner executes fn inside a transaction; repositories pick the
// transaction up from the context. Tests pass a pass-through runner.
type TxRunner func(ctx context.Context, fn func(context.Context) error) error

// PassthroughTx runs fn without a transaction.
func PassthroughTx(ctx context.Context, fn func(context.Context) error) error { return fn(ctx) }

type Service struct {
	accounts  AccountRepository
	policies  PolicyRepository
	writeOffs WriteOffRepository
	rates     RateSource
	notifier  Notifier
	runTx     TxRunner
	logger    zerolog.Logger
}

func NewService(accounts AccountRepository, policies PolicyRepository, writeOffs WriteOffRepository,
	rateSource RateSource, notifier Notifier, runTx TxRunner, logger zerolog.Logger) *Service {
	if runTx == nil {
		runTx = PassthroughTx
	}
	return &Service{
		accounts:  accounts,
		policies:  policies,
		writeOffs: writeOffs,
		rates:     rateSource,
		notifier:  notifier,
		runTx:     runTx,
		logger:    logger,
	}
}

// -- Accounts --

// OpenAccountInput opens collection tracking for a past-due statement.
type OpenAccountInput struct {
	PatientRef     string          `json:"patient_ref" validate:"required"`
	PatientContact string          `json:"patient_contact"`
	StatementRef   string          `json:"statement_ref" validate:"required"`
	BalanceDue     decimal.Decimal `json:"balance_due"`
	DueDate        time.Time       `json:"due_date" validate:"required"`
}

func (s *Service) OpenAccount(ctx context.Context, orgID string, in OpenAccountInput) (*CollectionsAccount, error) {
	if in.PatientRef == "" || in.StatementRef == "" {
		return nil, fmt.Errorf("patient_ref and statement_ref are required")
	}
	if !in.BalanceDue.IsPositive() {
		return nil, fmt.Errorf("balance_due must be positive")
	}
	if in.DueDate.IsZero() {
		return nil, fmt.Errorf("due_date is required")
	}

	a := &CollectionsAccount{
		OrgID:          orgID,
		PatientRef:     in.PatientRef,
		PatientContact: in.PatientContact,
		StatementRef:   in.StatementRef,
		BalanceDue:     in.BalanceDue.Round(2),
		DueDate:        in.DueDate,
		CurrentState:   StateInitial,
	}
	if err := s.accounts.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) GetAccount(ctx context.Context, id uuid.UUID) (*CollectionsAccount, error) {
	return s.accounts.GetByID(ctx, id)
}

func (s *Service) ListAccounts(ctx context.Context, orgID string, state State, limit, offset int) ([]*CollectionsAccount, int, error) {
	if state != "" && !state.Valid() {
		return nil, 0, fmt.Errorf("unknown state: %s", state)
	}
	return s.accounts.ListByOrg(ctx, orgID, state, limit, offset)
}

// Advance evaluates one escalation step for an account under a row lock.
// ErrDecisionPending passes through untouched so the sweep can treat it as
// a skip rather than a failure. Notification failure never blocks the
// transition.
func (s *Service) Advance(ctx context.Context, accountID uuid.UUID, now time.Time) (*CollectionsAccount, bool, error) {
	var result *CollectionsAccount
	var transitioned bool

	err := s.runTx(ctx, func(ctx context.Context) error {
		acct, err := s.accounts.GetByIDForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		policy, err := s.policies.GetActive(ctx, acct.OrgID)
		if err != nil {
			return fmt.Errorf("load policy: %w", err)
		}
		rc, err := s.rates.GetForOrg(ctx, acct.OrgID)
		if err != nil {
			return fmt.Errorf("load rates: %w", err)
		}

		updated, moved, err := AdvanceAccount(*acct, policy, rc, now)
		if err != nil {
			return err
		}
		if moved {
			if err := s.accounts.Update(ctx, &updated); err != nil {
				return err
			}
		}
		result = &updated
		transitioned = moved
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if transitioned {
		s.logger.Info().
			Str("account_id", accountID.String()).
			Str("state", string(result.CurrentState)).
			Msg("collections account escalated")
		s.notifyTransition(ctx, result, now)
	}
	return result, transitioned, nil
}

func (s *Service) notifyTransition(ctx context.Context, a *CollectionsAccount, now time.Time) {
	if s.notifier == nil || a.PatientContact == "" {
		return
	}
	var template string
	switch a.CurrentState {
	case StateFollowup15:
		template = notification.TemplateStatementReminder
	case StateFollowup30:
		template = notification.TemplateEscalationNotice
	case StateFollowup60:
		template = notification.TemplateFinalNotice
	case StateFounderDecision90:
		template = notification.TemplateAccountUnderReview
	default:
		return
	}
	s.notifier.Dispatch(ctx, template, a.PatientContact, map[string]string{
		"patient_name":  a.PatientRef,
		"statement_id":  a.StatementRef,
		"balance":       "$" + a.BalanceDue.StringFixed(2),
		"days_past_due": fmt.Sprintf("%d", a.DaysSinceDue(now)),
	})
}

// RecordPayment applies a payment event. The account resolves at zero
// balance.
func (s *Service) RecordPayment(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal, now time.Time) (*CollectionsAccount, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("payment amount must be positive")
	}

	var result *CollectionsAccount
	err := s.runTx(ctx, func(ctx context.Context) error {
		acct, err := s.accounts.GetByIDForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		if acct.CurrentState == StateWrittenOff {
			return ErrAccountTerminal
		}
		acct.BalanceDue = acct.BalanceDue.Sub(amount)
		if !acct.BalanceDue.IsPositive() {
			acct.BalanceDue = decimal.Zero
			resolved := now
			acct.ResolvedAt = &resolved
			acct.RequiresFounderDecision = false
		}
		if err := s.accounts.Update(ctx, acct); err != nil {
			return err
		}
		result = acct
		return nil
	})
	return result, err
}

// SetPause freezes the escalation clock; ClearPause resumes it.
func (s *Service) SetPause(ctx context.Context, accountID uuid.UUID, holdUntil *time.Time) (*CollectionsAccount, error) {
	return s.updateAccount(ctx, accountID, func(a *CollectionsAccount) error {
		if a.Terminal() {
			return ErrAccountTerminal
		}
		a.PaymentPauseActive = true
		a.EscalationHoldUntil = holdUntil
		return nil
	})
}

func (s *Service) ClearPause(ctx context.Context, accountID uuid.UUID) (*CollectionsAccount, error) {
	return s.updateAccount(ctx, accountID, func(a *CollectionsAccount) error {
		a.PaymentPauseActive = false
		a.EscalationHoldUntil = nil
		return nil
	})
}

func (s *Service) updateAccount(ctx context.Context, accountID uuid.UUID, mutate func(*CollectionsAccount) error) (*CollectionsAccount, error) {
	var result *CollectionsAccount
	err := s.runTx(ctx, func(ctx context.Context) error {
		acct, err := s.accounts.GetByIDForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		if err := mutate(acct); err != nil {
			return err
		}
		if err := s.accounts.Update(ctx, acct); err != nil {
			return err
		}
		result = acct
		return nil
	})
	return result, err
}

// ApproveWriteOff records a founder-approved write-off and moves the account
// to its terminal state. The approver is mandatory; a write-off record
// without one cannot be constructed.
func (s *Service) ApproveWriteOff(ctx context.Context, accountID uuid.UUID, approver, reason string, now time.Time) (*WriteOffRecord, error) {
	if approver == "" {
		return nil, ErrApproverRequired
	}
	if reason == "" {
		return nil, fmt.Errorf("write-off reason is required")
	}

	var record *WriteOffRecord
	err := s.runTx(ctx, func(ctx context.Context) error {
		acct, err := s.accounts.GetByIDForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		if acct.Terminal() {
			return ErrAccountTerminal
		}
		if !CanTransition(acct.CurrentState, StateWrittenOff) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, acct.CurrentState, StateWrittenOff)
		}

		record = &WriteOffRecord{
			OrgID:           acct.OrgID,
			AccountID:       acct.ID,
			OriginalBalance: acct.BalanceDue,
			WriteOffAmount:  acct.BalanceDue,
			Reason:          reason,
			ApprovedBy:      approver,
			ApprovedAt:      now,
		}
		if err := s.writeOffs.Create(ctx, record); err != nil {
			return err
		}

		acct.CurrentState = StateWrittenOff
		acct.BalanceDue = decimal.Zero
		acct.RequiresFounderDecision = false
		return s.accounts.Update(ctx, acct)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("account_id", accountID.String()).
		Str("approved_by", approver).
		Str("amount", record.WriteOffAmount.StringFixed(2)).
		Msg("write-off approved")
	return record, nil
}

func (s *Service) ListWriteOffs(ctx context.Context, orgID string, limit, offset int) ([]*WriteOffRecord, int, error) {
	return s.writeOffs.ListByOrg(ctx, orgID, limit, offset)
}

// -- Payment plan branch hooks --

// OnPlanActivated branches the account into payment_plan_active.
func (s *Service) OnPlanActivated(ctx context.Context, accountID uuid.UUID) error {
	_, err := s.updateAccount(ctx, accountID, func(a *CollectionsAccount) error {
		if a.Terminal() {
			return ErrAccountTerminal
		}
		if !CanTransition(a.CurrentState, StatePaymentPlanActive) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.CurrentState, StatePaymentPlanActive)
		}
		a.CurrentState = StatePaymentPlanActive
		a.RequiresFounderDecision = false
		return nil
	})
	return err
}

// OnPlanInstallment applies a received installment to the account balance,
// so a later default returns to escalation with only what is still owed.
func (s *Service) OnPlanInstallment(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal) error {
	_, err := s.RecordPayment(ctx, accountID, amount, time.Now().UTC())
	return err
}

// OnPlanCompleted resolves the account.
func (s *Service) OnPlanCompleted(ctx context.Context, accountID uuid.UUID) error {
	now := time.Now().UTC()
	_, err := s.updateAccount(ctx, accountID, func(a *CollectionsAccount) error {
		a.BalanceDue = decimal.Zero
		a.ResolvedAt = &now
		a.RequiresFounderDecision = false
		return nil
	})
	return err
}

// OnPlanDefaulted returns the account to the escalation state its recomputed
// days since due call for, with no credit for time spent on the plan.
func (s *Service) OnPlanDefaulted(ctx context.Context, accountID uuid.UUID) error {
	now := time.Now().UTC()
	var acct *CollectionsAccount
	err := s.runTx(ctx, func(ctx context.Context) error {
		a, err := s.accounts.GetByIDForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		rc, err := s.rates.GetForOrg(ctx, a.OrgID)
		if err != nil {
			return fmt.Errorf("load rates: %w", err)
		}
		updated := ReturnFromPlan(*a, rc, now)
		if err := s.accounts.Update(ctx, &updated); err != nil {
			return err
		}
		acct = &updated
		return nil
	})
	if err != nil {
		return err
	}

	if s.notifier != nil && acct.PatientContact != "" {
		s.notifier.Dispatch(ctx, notification.TemplatePlanDefaulted, acct.PatientContact, map[string]string{
			"patient_name": acct.PatientRef,
			"statement_id": acct.StatementRef,
			"balance":      "$" + acct.BalanceDue.StringFixed(2),
		})
	}
	return nil
}

// -- Policy --

// CreatePolicyVersion appends a new policy version. Versions are monotonic;
// the structural guarantees are validated before write.
func (s *Service) CreatePolicyVersion(ctx context.Context, orgID, approvedBy string, now time.Time) (*CollectionsPolicy, error) {
	if approvedBy == "" {
		return nil, fmt.Errorf("approved_by is required")
	}

	latest, err := s.policies.LatestVersion(ctx, orgID)
	if err != nil {
		return nil, err
	}
	p := &CollectionsPolicy{
		OrgID:                    orgID,
		PolicyVersion:            latest + 1,
		InternalOnly:             true,
		NeverExternalCollections: true,
		Immutable:                true,
		ApprovedBy:               approvedBy,
		ApprovedAt:               now,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := s.policies.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// LockPolicy freezes a policy version. A locked policy rejects any further
// change; this is fatal by design and logged at error level on attempts.
func (s *Service) LockPolicy(ctx context.Context, id uuid.UUID) (*CollectionsPolicy, error) {
	p, err := s.policies.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Locked() {
		s.logger.Error().
			Str("policy_id", id.String()).
			Int("version", p.PolicyVersion).
			Msg("attempted mutation of locked collections policy")
		return nil, ErrPolicyLocked
	}
	if err := s.policies.SetLocked(ctx, id); err != nil {
		return nil, err
	}
	return s.policies.GetByID(ctx, id)
}

func (s *Service) GetActivePolicy(ctx context.Context, orgID string) (*CollectionsPolicy, error) {
	return s.policies.GetActive(ctx, orgID)
}

func (s *Service) ListPolicies(ctx context.Context, orgID string) ([]*CollectionsPolicy, error) {
	return s.policies.ListByOrg(ctx, orgID)
}

// SweepableAccounts lists accounts still subject to automated escalation.
func (s *Service) SweepableAccounts(ctx context.Context, limit int) ([]uuid.UUID, error) {
	return s.accounts.ListSweepable(ctx, limit)
}
