package revenue

import (
	"context"
	"time"
)

type Repository interface {
	Outstanding(ctx context.Context, orgID string) (OutstandingSummary, error)
	AccountsByState(ctx context.Context, orgID string) ([]StateCount, error)
	PlansByStatus(ctx context.Context, orgID string) ([]PlanStatusCount, error)
	WriteOffsByPeriod(ctx context.Context, orgID string, from, to time.Time) ([]WriteOffPeriod, error)
	ChargesByStatus(ctx context.Context, orgID string) ([]ChargeSummary, error)
}
