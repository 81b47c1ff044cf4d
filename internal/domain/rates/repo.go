package rates

import (
	"context"
)

type Repository interface {
	GetByOrg(ctx context.Context, orgID string) (*RateConfig, error)
	Upsert(ctx context.Context, rc *RateConfig) error
}
