package charge

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/emsops/emsops/internal/domain/rates"
)

type mockRepo struct {
	byID       map[uuid.UUID]*ChargeRecord
	byIncident map[string]*ChargeRecord
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		byID:       make(map[uuid.UUID]*ChargeRecord),
		byIncident: make(map[string]*ChargeRecord),
	}
}

func incidentKey(orgID, incidentID string) string { return orgID + "/" + incidentID }

func (m *mockRepo) Create(_ context.Context, rec *ChargeRecord) error {
	key := incidentKey(rec.OrgID, rec.IncidentID)
	if _, exists := m.byIncident[key]; exists {
		return ErrDuplicateCharge
	}
	rec.ID = uuid.New()
	cp := *rec
	m.byID[rec.ID] = &cp
	m.byIncident[key] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*ChargeRecord, error) {
	rec, ok := m.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *rec
	return &cp, nil
}

func (m *mockRepo) GetByIncident(_ context.Context, orgID, incidentID string) (*ChargeRecord, error) {
	rec, ok := m.byIncident[incidentKey(orgID, incidentID)]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *rec
	return &cp, nil
}

func (m *mockRepo) Update(_ context.Context, rec *ChargeRecord) error {
	existing, ok := m.byID[rec.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	if existing.Locked && !rec.Locked {
		return ErrRecordLocked
	}
	cp := *rec
	m.byID[rec.ID] = &cp
	m.byIncident[incidentKey(rec.OrgID, rec.IncidentID)] = &cp
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	rec, ok := m.byID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	delete(m.byIncident, incidentKey(rec.OrgID, rec.IncidentID))
	delete(m.byID, id)
	return nil
}

func (m *mockRepo) ListByOrg(_ context.Context, orgID string, limit, offset int) ([]*ChargeRecord, int, error) {
	var items []*ChargeRecord
	for _, rec := range m.byID {
		if rec.OrgID == orgID {
			cp := *rec
			items = append(items, &cp)
		}
	}
	return items, len(items), nil
}

type stubRates struct{}

func (stubRates) GetForOrg(_ context.Context, orgID string) (*rates.RateConfig, error) {
	return rates.Defaults(orgID), nil
}

func newTestService(repo Repository) *Service {
	return NewService(repo, stubRates{}, zerolog.New(os.Stderr))
}

func basicInput() *ChargeInput {
	return &ChargeInput{
		Request: TransportChargeRequest{
			IncidentID:    "inc-1",
			TransportType: TransportIFT,
			Mileage:       decimal.NewFromInt(10),
		},
	}
}

func TestBuildRecord_CreatesDraftWithoutInsurance(t *testing.T) {
	svc := newTestService(newMockRepo())

	rec, err := svc.BuildRecord(context.Background(), "org-1", basicInput())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !rec.TotalCharge.Equal(decimal.RequireFromString("570")) {
		t.Errorf("total = %s, want 570", rec.TotalCharge)
	}
	if rec.BillingStatus != StatusDraft {
		t.Errorf("status = %s, want DRAFT without insurance", rec.BillingStatus)
	}
}

func TestBuildRecord_ReadyWithCompleteInsurance(t *testing.T) {
	svc := newTestService(newMockRepo())

	in := basicInput()
	in.Primary = completeInsurance()
	rec, err := svc.BuildRecord(context.Background(), "org-1", in)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if rec.BillingStatus != StatusReady {
		t.Errorf("status = %s, want READY", rec.BillingStatus)
	}
	if !rec.ClaimReady {
		t.Error("expected claim_ready")
	}
}

func TestBuildRecord_RerunUpdatesUnlockedRecord(t *testing.T) {
	svc := newTestService(newMockRepo())

	first, err := svc.BuildRecord(context.Background(), "org-1", basicInput())
	if err != nil {
		t.Fatalf("first build: %v", err)
	}

	in := basicInput()
	in.Request.Mileage = decimal.NewFromInt(20)
	second, err := svc.BuildRecord(context.Background(), "org-1", in)
	if err != nil {
		t.Fatalf("second build: %v", err)
	}
	if second.ID != first.ID {
		t.Error("rerun must update the existing record, not create a new one")
	}
	if !second.TotalCharge.Equal(decimal.RequireFromString("690")) {
		t.Errorf("total = %s, want 690 after rerun", second.TotalCharge)
	}
}

func TestBuildRecord_RejectsLockedRecord(t *testing.T) {
	svc := newTestService(newMockRepo())

	in := basicInput()
	in.Primary = completeInsurance()
	rec, err := svc.BuildRecord(context.Background(), "org-1", in)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, err := svc.Lock(context.Background(), rec.ID); err != nil {
		t.Fatalf("lock: %v", err)
	}

	if _, err := svc.BuildRecord(context.Background(), "org-1", in); !errors.Is(err, ErrRecordLocked) {
		t.Errorf("expected ErrRecordLocked, got %v", err)
	}
}

func TestLock_RequiresReadyStatus(t *testing.T) {
	svc := newTestService(newMockRepo())

	rec, err := svc.BuildRecord(context.Background(), "org-1", basicInput())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, err := svc.Lock(context.Background(), rec.ID); err == nil {
		t.Error("DRAFT record must not be lockable")
	}
}

func TestBuildRecord_RejectsBadInput(t *testing.T) {
	svc := newTestService(newMockRepo())

	in := basicInput()
	in.Request.IncidentID = ""
	if _, err := svc.BuildRecord(context.Background(), "org-1", in); err == nil {
		t.Error("expected error for missing incident_id")
	}

	in = basicInput()
	in.Request.TransportType = "JETPACK"
	if _, err := svc.BuildRecord(context.Background(), "org-1", in); err == nil {
		t.Error("expected error for invalid transport type")
	}

	in = basicInput()
	in.Request.Mileage = decimal.NewFromInt(-3)
	if _, err := svc.BuildRecord(context.Background(), "org-1", in); err == nil {
		t.Error("expected error for negative mileage")
	}
}

func TestPreview_DoesNotPersist(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)

	preview, err := svc.Preview(context.Background(), "org-1", basicInput())
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if !preview.Validation.IsValid {
		t.Errorf("expected valid preview, got %v", preview.Validation.Errors)
	}
	if len(repo.byID) != 0 {
		t.Error("preview must not persist anything")
	}
}
