package charge

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/emsops/emsops/internal/domain/rates"
)

// RateSource supplies the organization's rate configuration.
type RateSource interface {
	GetForOrg(ctx context.Context, orgID string) (*rates.RateConfig, error)
}

// ChargeInput is the full input to the charge pipeline: transport facts plus
// the insurance captured on the incident.
type ChargeInput struct {
	Request   TransportChargeRequest `json:"request" validate:"required"`
	Primary   *InsuranceSnapshot     `json:"primary_insurance,omitempty"`
	Secondary *InsuranceSnapshot     `json:"secondary_insurance,omitempty"`
}

// ChargePreview is the result of running the pipeline without persisting.
type ChargePreview struct {
	Calculation ChargeCalculationResult   `json:"calculation"`
	Validation  ValidationResult          `json:"validation"`
	Insurance   InsuranceEstimationResult `json:"insurance"`
}

type Service struct {
	repo   Repository
	rates  RateSource
	logger zerolog.Logger
}

func NewService(repo Repository, rateSource RateSource, logger zerolog.Logger) *Service {
	return &Service{repo: repo, rates: rateSource, logger: logger}
}

func (s *Service) checkInput(in *ChargeInput) error {
	if in.Request.IncidentID == "" {
		return fmt.Errorf("incident_id is required")
	}
	if !in.Request.TransportType.Valid() {
		return fmt.Errorf("invalid transport_type: %s", in.Request.TransportType)
	}
	if in.Request.Mileage.IsNegative() {
		return fmt.Errorf("mileage must not be negative")
	}
	return nil
}

// Preview runs the full pipeline (calculate, validate, estimate) without
// touching persistence.
func (s *Service) Preview(ctx context.Context, orgID string, in *ChargeInput) (*ChargePreview, error) {
	if err := s.checkInput(in); err != nil {
		return nil, err
	}
	rc, err := s.rates.GetForOrg(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("load rates: %w", err)
	}

	calc := ComputeCharge(&in.Request, rc)
	vr := Validate(calc)
	est := EstimateInsurance(calc.TotalCharge, in.Primary, in.Secondary, rc)

	return &ChargePreview{Calculation: *calc, Validation: vr, Insurance: est}, nil
}

// BuildRecord runs the pipeline and persists the result. At most one record
// exists per incident: a first build creates it, a later build re-runs the
// pipeline over the existing unlocked record, and a build against a locked
// record is rejected. A concurrent duplicate insert surfaces as
// ErrDuplicateCharge from the repository's uniqueness constraint.
func (s *Service) BuildRecord(ctx context.Context, orgID string, in *ChargeInput) (*ChargeRecord, error) {
	if err := s.checkInput(in); err != nil {
		return nil, err
	}
	rc, err := s.rates.GetForOrg(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("load rates: %w", err)
	}

	calc := ComputeCharge(&in.Request, rc)
	est := EstimateInsurance(calc.TotalCharge, in.Primary, in.Secondary, rc)
	rec, vr := BuildChargeRecord(orgID, &in.Request, calc, est)
	if !vr.IsValid {
		s.logger.Warn().
			Str("incident_id", in.Request.IncidentID).
			Strs("errors", vr.Errors).
			Msg("charge failed validation, record stays DRAFT")
	}

	existing, err := s.repo.GetByIncident(ctx, orgID, in.Request.IncidentID)
	switch {
	case err == nil:
		if existing.Locked {
			return nil, ErrRecordLocked
		}
		rec.ID = existing.ID
		rec.CreatedAt = existing.CreatedAt
		if err := s.repo.Update(ctx, rec); err != nil {
			return nil, err
		}
		return rec, nil
	case errors.Is(err, pgx.ErrNoRows):
		if err := s.repo.Create(ctx, rec); err != nil {
			return nil, err
		}
		return rec, nil
	default:
		return nil, err
	}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*ChargeRecord, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByIncident(ctx context.Context, orgID, incidentID string) (*ChargeRecord, error) {
	return s.repo.GetByIncident(ctx, orgID, incidentID)
}

func (s *Service) List(ctx context.Context, orgID string, limit, offset int) ([]*ChargeRecord, int, error) {
	return s.repo.ListByOrg(ctx, orgID, limit, offset)
}

// Lock freezes a READY record against further mutation.
func (s *Service) Lock(ctx context.Context, id uuid.UUID) (*ChargeRecord, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Locked {
		return rec, nil
	}
	if rec.BillingStatus != StatusReady {
		return nil, fmt.Errorf("only READY records may be locked, record is %s", rec.BillingStatus)
	}
	rec.Locked = true
	if err := s.repo.Update(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Delete removes a charge record. Incident deletion is rare and audited, so
// the removal is logged loudly.
func (s *Service) Delete(ctx context.Context, id uuid.UUID, actor string) error {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	s.logger.Warn().
		Str("charge_id", id.String()).
		Str("incident_id", rec.IncidentID).
		Str("actor", actor).
		Msg("charge record deleted")
	return s.repo.Delete(ctx, id)
}
