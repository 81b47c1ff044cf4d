package paymentplan

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/emsops/emsops/internal/domain/rates"
)

// RateSource supplies the organization's rate configuration.
type RateSource interface {
	GetForOrg(ctx context.Context, orgID string) (*rates.RateConfig, error)
}

// AccountBrancher receives plan lifecycle events so the collections side can
// branch the account in and out of the payment plan state. Wired at startup;
// the plan service never imports the collections package.
type AccountBrancher interface {
	OnPlanActivated(ctx context.Context, accountID uuid.UUID) error
	OnPlanInstallment(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal) error
	OnPlanCompleted(ctx context.Context, accountID uuid.UUID) error
	OnPlanDefaulted(ctx context.Context, accountID uuid.UUID) error
}

type Service struct {
	repo     Repository
	rates    RateSource
	brancher AccountBrancher
	logger   zerolog.Logger
}

func NewService(repo Repository, rateSource RateSource, logger zerolog.Logger) *Service {
	return &Service{repo: repo, rates: rateSource, logger: logger}
}

// SetAccountBrancher attaches the collections-side branch hooks.
func (s *Service) SetAccountBrancher(b AccountBrancher) { s.brancher = b }

// Options returns the tier drafts for a balance without persisting anything.
func (s *Service) Options(ctx context.Context, orgID string, req TierRequest) ([]TierOption, error) {
	if !req.Balance.IsPositive() {
		return nil, fmt.Errorf("balance must be positive")
	}
	rc, err := s.rates.GetForOrg(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("load rates: %w", err)
	}
	return TierOptions(req, rc), nil
}

// CreatePlan persists a pending plan draft for an account from the selected
// tier option.
func (s *Service) CreatePlan(ctx context.Context, orgID string, accountID uuid.UUID, tier Tier, req TierRequest) (*PaymentPlan, error) {
	rc, err := s.rates.GetForOrg(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("load rates: %w", err)
	}
	var selected *PaymentPlan
	for _, opt := range TierOptions(req, rc) {
		if opt.Plan.Tier == tier {
			p := opt.Plan
			selected = &p
			break
		}
	}
	if selected == nil {
		return nil, fmt.Errorf("no tier option %q for balance %s", tier, req.Balance)
	}
	selected.OrgID = orgID
	selected.AccountID = accountID
	if err := s.repo.Create(ctx, selected); err != nil {
		return nil, err
	}
	return selected, nil
}

// Accept activates a pending plan. Acceptance is always explicit: the
// accepting party is recorded, and auto-pay additionally requires a consent
// capture. Activation branches the collections account.
func (s *Service) Accept(ctx context.Context, id uuid.UUID, acceptedBy string, consent bool) (*PaymentPlan, error) {
	if acceptedBy == "" {
		return nil, fmt.Errorf("accepted_by is required")
	}
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != StatusPending {
		return nil, ErrNotPending
	}
	if p.AutoPayEnabled && !consent {
		return nil, ErrConsentRequired
	}

	now := time.Now().UTC()
	p.Status = StatusActive
	p.AcceptedBy = &acceptedBy
	p.AcceptedAt = &now
	if p.AutoPayEnabled {
		p.ConsentCapturedAt = &now
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}

	if s.brancher != nil {
		if err := s.brancher.OnPlanActivated(ctx, p.AccountID); err != nil {
			s.logger.Error().Err(err).
				Str("plan_id", p.ID.String()).
				Str("account_id", p.AccountID.String()).
				Msg("failed to branch account into payment plan")
		}
	}
	return p, nil
}

// RecordInstallment applies a received installment. Each installment is
// forwarded to the collections side as a payment event so the account's
// balance tracks what has actually been paid; completion resolves the
// account.
func (s *Service) RecordInstallment(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (*PaymentPlan, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("installment amount must be positive")
	}
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != StatusActive {
		return nil, fmt.Errorf("installments only apply to active plans, plan is %s", p.Status)
	}

	p.InstallmentsPaid++
	p.RemainingBalance = p.RemainingBalance.Sub(amount)
	if !p.RemainingBalance.IsPositive() || p.InstallmentsPaid >= p.TotalInstallments {
		p.RemainingBalance = decimal.Zero
		p.Status = StatusCompleted
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}

	if s.brancher != nil {
		if err := s.brancher.OnPlanInstallment(ctx, p.AccountID, amount); err != nil {
			s.logger.Error().Err(err).
				Str("plan_id", p.ID.String()).
				Str("account_id", p.AccountID.String()).
				Msg("failed to apply installment to account balance")
		}
	}
	if p.Status == StatusCompleted && s.brancher != nil {
		if err := s.brancher.OnPlanCompleted(ctx, p.AccountID); err != nil {
			s.logger.Error().Err(err).
				Str("plan_id", p.ID.String()).
				Msg("failed to resolve account on plan completion")
		}
	}
	return p, nil
}

// MarkDefaulted marks an active plan defaulted and returns the account to
// the ordinary escalation path.
func (s *Service) MarkDefaulted(ctx context.Context, id uuid.UUID) (*PaymentPlan, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != StatusActive {
		return nil, fmt.Errorf("only active plans can default, plan is %s", p.Status)
	}
	p.Status = StatusDefaulted
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}

	if s.brancher != nil {
		if err := s.brancher.OnPlanDefaulted(ctx, p.AccountID); err != nil {
			s.logger.Error().Err(err).
				Str("plan_id", p.ID.String()).
				Msg("failed to return defaulted account to escalation")
		}
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*PaymentPlan, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, orgID string, limit, offset int) ([]*PaymentPlan, int, error) {
	return s.repo.ListByOrg(ctx, orgID, limit, offset)
}
