package paymentplan

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *PaymentPlan) error
	GetByID(ctx context.Context, id uuid.UUID) (*PaymentPlan, error)
	GetActiveByAccount(ctx context.Context, accountID uuid.UUID) (*PaymentPlan, error)
	Update(ctx context.Context, p *PaymentPlan) error
	ListByOrg(ctx context.Context, orgID string, limit, offset int) ([]*PaymentPlan, int, error)
}
