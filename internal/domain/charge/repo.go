package charge

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, rec *ChargeRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*ChargeRecord, error)
	GetByIncident(ctx context.Context, orgID, incidentID string) (*ChargeRecord, error)
	Update(ctx context.Context, rec *ChargeRecord) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByOrg(ctx context.Context, orgID string, limit, offset int) ([]*ChargeRecord, int, error)
}
