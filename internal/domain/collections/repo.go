package collections

import (
	"context"

	"github.com/google/uuid"
)

type AccountRepository interface {
	Create(ctx context.Context, a *CollectionsAccount) error
	GetByID(ctx context.Context, id uuid.UUID) (*CollectionsAccount, error)
	// GetByIDForUpdate takes a row lock so concurrent payment events, pause
	// toggles, and sweep promotions on one account serialize.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*CollectionsAccount, error)
	Update(ctx context.Context, a *CollectionsAccount) error
	ListByOrg(ctx context.Context, orgID string, state State, limit, offset int) ([]*CollectionsAccount, int, error)
	ListSweepable(ctx context.Context, limit int) ([]uuid.UUID, error)
}

type PolicyRepository interface {
	Create(ctx context.Context, p *CollectionsPolicy) error
	GetActive(ctx context.Context, orgID string) (*CollectionsPolicy, error)
	GetByID(ctx context.Context, id uuid.UUID) (*CollectionsPolicy, error)
	LatestVersion(ctx context.Context, orgID string) (int, error)
	SetLocked(ctx context.Context, id uuid.UUID) error
	ListByOrg(ctx context.Context, orgID string) ([]*CollectionsPolicy, error)
}

type WriteOffRepository interface {
	Create(ctx context.Context, w *WriteOffRecord) error
	ListByOrg(ctx context.Context, orgID string, limit, offset int) ([]*WriteOffRecord, int, error)
}
