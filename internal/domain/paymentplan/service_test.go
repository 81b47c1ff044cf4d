package paymentplan

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
	plans map[uuid.UUID]*PaymentPlan
}

func newMockRepo() *mockRepo {
	return &mockRepo{plans: make(map[uuid.UUID]*PaymentPlan)}
}

func (m *mockRepo) Create(_ context.Context, p *PaymentPlan) error {
	p.ID = uuid.New()
	cp := *p
	m.plans[p.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*PaymentPlan, error) {
	p, ok := m.plans[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *p
	return &cp, nil
}

func (m *mockRepo) GetActiveByAccount(_ context.Context, accountID uuid.UUID) (*PaymentPlan, error) {
	for _, p := range m.plans {
		if p.AccountID == accountID && p.Status == StatusActive {
			cp := *p
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *mockRepo) Update(_ context.Context, p *PaymentPlan) error {
	if _, ok := m.plans[p.ID]; !ok {
		return pgx.ErrNoRows
	}
	cp := *p
	m.plans[p.ID] = &cp
	return nil
}

func (m *mockRepo) ListByOrg(_ context.Context, orgID string, limit, offset int) ([]*PaymentPlan, int, error) {
	var items []*PaymentPlan
	for _, p := range m.plans {
		if p.OrgID == orgID {
			cp := *p
			items = append(items, &cp)
		}
	}
	return items, len(items), nil
}

type stubRates struct{}

func (stubRates) GetForOrg(_ context.Context, orgID string) (*rates.RateConfig, error) {
	return rates.Defaults(orgID), nil
}

type branchedInstallment struct {
	accountID uuid.UUID
	amount    decimal.Decimal
}

type mockBrancher struct {
	activated, completed, defaulted []uuid.UUID
	installments                    []branchedInstallment
}

func (m *mockBrancher) OnPlanActivated(_ context.Context, id uuid.UUID) error {
	m.activated = append(m.activated, id)
	return nil
}

func (m *mockBrancher) OnPlanInstallment(_ context.Context, id uuid.UUID, amount decimal.Decimal) error {
	m.installments = append(m.installments, branchedInstallment{id, amount})
	return nil
}

func (m *mockBrancher) OnPlanCompleted(_ context.Context, id uuid.UUID) error {
	m.completed = append(m.completed, id)
	return nil
}

func (m *mockBrancher) OnPlanDefaulted(_ context.Context, id uuid.UUID) error {
	m.defaulted = append(m.defaulted, id)
	return nil
}

func newTestService() (*Service, *mockRepo, *mockBrancher) {
	repo := newMockRepo()
	svc := NewService(repo, stubRates{}, zerolog.New(os.Stderr))
	brancher := &mockBrancher{}
	svc.SetAccountBrancher(brancher)
	return svc, repo, brancher
}

func createPendingPlan(t *testing.T, svc *Service, autoPay bool) *PaymentPlan {
	t.Helper()
	p, err := svc.CreatePlan(context.Background(), "org-1", uuid.New(), TierShortTerm,
		TierRequest{Balance: dec("300"), AutoPay: autoPay})
	if err != nil {
		t.Fatalf("create plan: %v", err)
	}
	return p
}

func TestAccept_ActivatesAndBranchesAccount(t *testing.T) {
	svc, _, brancher := newTestService()
	p := createPendingPlan(t, svc, false)

	accepted, err := svc.Accept(context.Background(), p.ID, "patient-rep-1", false)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if accepted.Status != StatusActive {
		t.Errorf("status = %s, want active", accepted.Status)
	}
	if accepted.AcceptedBy == nil || *accepted.AcceptedBy != "patient-rep-1" {
		t.Error("acceptance must record who accepted")
	}
	if len(brancher.activated) != 1 || brancher.activated[0] != p.AccountID {
		t.Error("activation must branch the collections account")
	}
}

func TestAccept_AutoPayRequiresConsent(t *testing.T) {
	svc, _, _ := newTestService()
	p := createPendingPlan(t, svc, true)

	if _, err := svc.Accept(context.Background(), p.ID, "rep", false); !errors.Is(err, ErrConsentRequired) {
		t.Errorf("expected ErrConsentRequired, got %v", err)
	}

	accepted, err := svc.Accept(context.Background(), p.ID, "rep", true)
	if err != nil {
		t.Fatalf("accept with consent: %v", err)
	}
	if accepted.ConsentCapturedAt == nil {
		t.Error("consent must be captured")
	}
}

func TestAccept_RejectsNonPending(t *testing.T) {
	svc, _, _ := newTestService()
	p := createPendingPlan(t, svc, false)
	if _, err := svc.Accept(context.Background(), p.ID, "rep", false); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := svc.Accept(context.Background(), p.ID, "rep", false); !errors.Is(err, ErrNotPending) {
		t.Errorf("expected ErrNotPending on second accept, got %v", err)
	}
}

func TestAccept_RequiresAcceptor(t *testing.T) {
	svc, _, _ := newTestService()
	p := createPendingPlan(t, svc, false)
	if _, err := svc.Accept(context.Background(), p.ID, "", false); err == nil {
		t.Error("acceptance without an acceptor must fail")
	}
}

func TestRecordInstallment_CompletesPlan(t *testing.T) {
	svc, _, brancher := newTestService()
	p := createPendingPlan(t, svc, false)
	if _, err := svc.Accept(context.Background(), p.ID, "rep", false); err != nil {
		t.Fatalf("accept: %v", err)
	}

	// 300 over 3 installments of 100.
	for i := 0; i < 3; i++ {
		var err error
		p, err = svc.RecordInstallment(context.Background(), p.ID, dec("100"))
		if err != nil {
			t.Fatalf("installment %d: %v", i+1, err)
		}
	}
	if p.Status != StatusCompleted {
		t.Errorf("status = %s, want completed", p.Status)
	}
	if !p.RemainingBalance.IsZero() {
		t.Errorf("remaining = %s, want 0", p.RemainingBalance)
	}
	if len(brancher.completed) != 1 {
		t.Error("completion must resolve the collections account")
	}
}

func TestRecordInstallment_ForwardsPaymentToAccount(t *testing.T) {
	svc, _, brancher := newTestService()
	p := createPendingPlan(t, svc, false)
	if _, err := svc.Accept(context.Background(), p.ID, "rep", false); err != nil {
		t.Fatalf("accept: %v", err)
	}

	if _, err := svc.RecordInstallment(context.Background(), p.ID, dec("100")); err != nil {
		t.Fatalf("installment: %v", err)
	}
	if len(brancher.installments) != 1 {
		t.Fatalf("got %d forwarded installments, want 1", len(brancher.installments))
	}
	got := brancher.installments[0]
	if got.accountID != p.AccountID {
		t.Errorf("installment forwarded to account %s, want %s", got.accountID, p.AccountID)
	}
	if !got.amount.Equal(dec("100")) {
		t.Errorf("forwarded amount = %s, want 100", got.amount)
	}
}

func TestRecordInstallment_RejectsInactivePlan(t *testing.T) {
	svc, _, _ := newTestService()
	p := createPendingPlan(t, svc, false)
	if _, err := svc.RecordInstallment(context.Background(), p.ID, decimal.NewFromInt(100)); err == nil {
		t.Error("installments must not apply to pending plans")
	}
}

func TestMarkDefaulted_ReturnsAccountToEscalation(t *testing.T) {
	svc, _, brancher := newTestService()
	p := createPendingPlan(t, svc, false)
	if _, err := svc.Accept(context.Background(), p.ID, "rep", false); err != nil {
		t.Fatalf("accept: %v", err)
	}

	defaulted, err := svc.MarkDefaulted(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	if defaulted.Status != StatusDefaulted {
		t.Errorf("status = %s, want defaulted", defaulted.Status)
	}
	if len(brancher.defaulted) != 1 {
		t.Error("default must return the account to escalation")
	}
}
