package revenue

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Snapshot assembles the full KPI set in one call. Each rollup is fetched
// independently; a failure in any one fails the snapshot.
func (s *Service) Snapshot(ctx context.Context, orgID string) (*Snapshot, error) {
	outstanding, err := s.repo.Outstanding(ctx, orgID)
	if err != nil {
		return nil, err
	}
	byState, err := s.repo.AccountsByState(ctx, orgID)
	if err != nil {
		return nil, err
	}
	planStatus, err := s.repo.PlansByStatus(ctx, orgID)
	if err != nil {
		return nil, err
	}
	charges, err := s.repo.ChargesByStatus(ctx, orgID)
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		OrgID:       orgID,
		GeneratedAt: time.Now().UTC(),
		Outstanding: outstanding,
		ByState:     byState,
		PlanStatus:  planStatus,
		Charges:     charges,
	}, nil
}

// WriteOffsByPeriod returns monthly write-off volume. A zero "to" defaults
// to now; a zero "from" defaults to one year back.
func (s *Service) WriteOffsByPeriod(ctx context.Context, orgID string, from, to time.Time) ([]WriteOffPeriod, error) {
	if to.IsZero() {
		to = time.Now().UTC()
	}
	if from.IsZero() {
		from = to.AddDate(-1, 0, 0)
	}
	return s.repo.WriteOffsByPeriod(ctx, orgID, from, to)
}
