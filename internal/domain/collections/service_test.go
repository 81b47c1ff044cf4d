package collections

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/emsops/emsops/internal/domain/rates"
	"github.com/emsops/emsops/internal/platform/notification"
)

type mockAccountRepo struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*CollectionsAccount
}

func newMockAccountRepo() *mockAccountRepo {
	return &mockAccountRepo{accounts: make(map[uuid.UUID]*CollectionsAccount)}
}

func (m *mockAccountRepo) Create(_ context.Context, a *CollectionsAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = uuid.New()
	cp := *a
	m.accounts[a.ID] = &cp
	return nil
}

func (m *mockAccountRepo) GetByID(_ context.Context, id uuid.UUID) (*CollectionsAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *a
	return &cp, nil
}

func (m *mockAccountRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*CollectionsAccount, error) {
	return m.GetByID(ctx, id)
}

func (m *mockAccountRepo) Update(_ context.Context, a *CollectionsAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[a.ID]; !ok {
		return pgx.ErrNoRows
	}
	cp := *a
	m.accounts[a.ID] = &cp
	return nil
}

func (m *mockAccountRepo) ListByOrg(_ context.Context, orgID string, state State, _, _ int) ([]*CollectionsAccount, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []*CollectionsAccount
	for _, a := range m.accounts {
		if a.OrgID != orgID {
			continue
		}
		if state != "" && a.CurrentState != state {
			continue
		}
		cp := *a
		items = append(items, &cp)
	}
	return items, len(items), nil
}

func (m *mockAccountRepo) ListSweepable(_ context.Context, limit int) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uuid.UUID
	for id, a := range m.accounts {
		if a.ResolvedAt != nil {
			continue
		}
		switch a.CurrentState {
		case StateWrittenOff, StatePaymentPlanActive, StateFounderDecision90:
			continue
		}
		ids = append(ids, id)
		if len(ids) >= limit {
			break
		}
	}
	return ids, nil
}

type mockPolicyRepo struct {
	mu       sync.Mutex
	policies map[uuid.UUID]*CollectionsPolicy
}

func newMockPolicyRepo() *mockPolicyRepo {
	return &mockPolicyRepo{policies: make(map[uuid.UUID]*CollectionsPolicy)}
}

func (m *mockPolicyRepo) Create(_ context.Context, p *CollectionsPolicy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = uuid.New()
	cp := *p
	m.policies[p.ID] = &cp
	return nil
}

func (m *mockPolicyRepo) GetActive(_ context.Context, orgID string) (*CollectionsPolicy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *CollectionsPolicy
	for _, p := range m.policies {
		if p.OrgID != orgID {
			continue
		}
		if best == nil || p.PolicyVersion > best.PolicyVersion {
			best = p
		}
	}
	if best == nil {
		return nil, pgx.ErrNoRows
	}
	cp := *best
	return &cp, nil
}

func (m *mockPolicyRepo) GetByID(_ context.Context, id uuid.UUID) (*CollectionsPolicy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.policies[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *p
	return &cp, nil
}

func (m *mockPolicyRepo) LatestVersion(_ context.Context, orgID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := 0
	for _, p := range m.policies {
		if p.OrgID == orgID && p.PolicyVersion > v {
			v = p.PolicyVersion
		}
	}
	return v, nil
}

func (m *mockPolicyRepo) SetLocked(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.policies[id]
	if !ok {
		return pgx.ErrNoRows
	}
	if p.LockedAt != nil {
		return ErrPolicyLocked
	}
	now := time.Now()
	p.LockedAt = &now
	return nil
}

func (m *mockPolicyRepo) ListByOrg(_ context.Context, orgID string) ([]*CollectionsPolicy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []*CollectionsPolicy
	for _, p := range m.policies {
		if p.OrgID == orgID {
			cp := *p
			items = append(items, &cp)
		}
	}
	return items, nil
}

type mockWriteOffRepo struct {
	mu      sync.Mutex
	records []*WriteOffRecord
}

func (m *mockWriteOffRepo) Create(_ context.Context, w *WriteOffRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w.ID = uuid.New()
	cp := *w
	m.records = append(m.records, &cp)
	return nil
}

func (m *mockWriteOffRepo) ListByOrg(_ context.Context, orgID string, _, _ int) ([]*WriteOffRecord, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []*WriteOffRecord
	for _, w := range m.records {
		if w.OrgID == orgID {
			items = append(items, w)
		}
	}
	return items, len(items), nil
}

type stubRates struct{}

func (stubRates) GetForOrg(_ context.Context, orgID string) (*rates.RateConfig, error) {
	return rates.Defaults(orgID), nil
}

type dispatched struct {
	templateID string
	recipient  string
	data       map[string]string
}

type mockNotifier struct {
	mu    sync.Mutex
	calls []dispatched
}

func (m *mockNotifier) Dispatch(_ context.Context, templateID, recipient string, data map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, dispatched{templateID, recipient, data})
}

func (m *mockNotifier) last() (dispatched, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return dispatched{}, false
	}
	return m.calls[len(m.calls)-1], true
}

type fixture struct {
	svc      *Service
	accounts *mockAccountRepo
	policies *mockPolicyRepo
	writes   *mockWriteOffRepo
	notifier *mockNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		accounts: newMockAccountRepo(),
		policies: newMockPolicyRepo(),
		writes:   &mockWriteOffRepo{},
		notifier: &mockNotifier{},
	}
	f.svc = NewService(f.accounts, f.policies, f.writes, stubRates{}, f.notifier, PassthroughTx, zerolog.Nop())
	return f
}

func (f *fixture) withPolicy(t *testing.T) {
	t.Helper()
	if _, err := f.svc.CreatePolicyVersion(context.Background(), "org-1", "founder@example.com", time.Now()); err != nil {
		t.Fatalf("seed policy: %v", err)
	}
}

func (f *fixture) openAccount(t *testing.T, daysPastDue int) *CollectionsAccount {
	t.Helper()
	a, err := f.svc.OpenAccount(context.Background(), "org-1", OpenAccountInput{
		PatientRef:     "patient-1",
		PatientContact: "patient@example.com",
		StatementRef:   "stmt-1",
		BalanceDue:     decimal.NewFromInt(570),
		DueDate:        time.Now().AddDate(0, 0, -daysPastDue),
	})
	if err != nil {
		t.Fatalf("open account: %v", err)
	}
	return a
}

func TestOpenAccountValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.OpenAccount(ctx, "org-1", OpenAccountInput{
		StatementRef: "stmt-1",
		BalanceDue:   decimal.NewFromInt(100),
		DueDate:      time.Now(),
	})
	if err == nil {
		t.Error("expected error for missing patient_ref")
	}

	_, err = f.svc.OpenAccount(ctx, "org-1", OpenAccountInput{
		PatientRef:   "patient-1",
		StatementRef: "stmt-1",
		BalanceDue:   decimal.Zero,
		DueDate:      time.Now(),
	})
	if err == nil {
		t.Error("expected error for non-positive balance")
	}
}

func TestAdvanceNotifiesOnTransition(t *testing.T) {
	f := newFixture(t)
	f.withPolicy(t)
	a := f.openAccount(t, 20)

	_, moved, err := f.svc.Advance(context.Background(), a.ID, time.Now())
	if err != nil || !moved {
		t.Fatalf("moved=%v err=%v", moved, err)
	}

	call, ok := f.notifier.last()
	if !ok {
		t.Fatal("expected a dispatched notice")
	}
	if call.templateID != notification.TemplateStatementReminder {
		t.Errorf("got template %s, want statement reminder", call.templateID)
	}
	if call.recipient != "patient@example.com" {
		t.Errorf("got recipient %s", call.recipient)
	}
	if call.data["balance"] != "$570.00" {
		t.Errorf("got balance %s", call.data["balance"])
	}
}

func TestAdvanceWithoutPolicyFails(t *testing.T) {
	f := newFixture(t)
	a := f.openAccount(t, 20)

	_, _, err := f.svc.Advance(context.Background(), a.ID, time.Now())
	if err == nil {
		t.Fatal("advance without a governance policy must fail")
	}
}

func TestAdvanceFounderGateReturnsDecisionPending(t *testing.T) {
	f := newFixture(t)
	f.withPolicy(t)
	a := f.openAccount(t, 120)

	ctx := context.Background()
	now := time.Now()
	for i := 0; i < 4; i++ {
		if _, _, err := f.svc.Advance(ctx, a.ID, now); err != nil {
			t.Fatalf("sweep %d: %v", i, err)
		}
	}
	_, _, err := f.svc.Advance(ctx, a.ID, now)
	if !errors.Is(err, ErrDecisionPending) {
		t.Fatalf("expected ErrDecisionPending, got %v", err)
	}
}

func TestRecordPaymentResolvesAtZero(t *testing.T) {
	f := newFixture(t)
	a := f.openAccount(t, 20)
	ctx := context.Background()

	updated, err := f.svc.RecordPayment(ctx, a.ID, decimal.NewFromInt(500), time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if updated.ResolvedAt != nil {
		t.Error("partial payment must not resolve the account")
	}
	if !updated.BalanceDue.Equal(decimal.NewFromInt(70)) {
		t.Errorf("got balance %s, want 70", updated.BalanceDue)
	}

	updated, err = f.svc.RecordPayment(ctx, a.ID, decimal.NewFromInt(70), time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if updated.ResolvedAt == nil {
		t.Error("full payment must resolve the account")
	}
	if !updated.BalanceDue.IsZero() {
		t.Errorf("got balance %s, want 0", updated.BalanceDue)
	}

	// Overpayment clamps at zero, never negative.
	b := f.openAccount(t, 20)
	updated, err = f.svc.RecordPayment(ctx, b.ID, decimal.NewFromInt(600), time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if !updated.BalanceDue.IsZero() {
		t.Errorf("overpayment must clamp to zero, got %s", updated.BalanceDue)
	}
}

func TestRecordPaymentRejectsWrittenOff(t *testing.T) {
	f := newFixture(t)
	a := f.openAccount(t, 20)

	ctx := context.Background()
	if _, err := f.svc.ApproveWriteOff(ctx, a.ID, "founder@example.com", "hardship", time.Now()); err != nil {
		t.Fatal(err)
	}
	_, err := f.svc.RecordPayment(ctx, a.ID, decimal.NewFromInt(10), time.Now())
	if !errors.Is(err, ErrAccountTerminal) {
		t.Fatalf("expected ErrAccountTerminal, got %v", err)
	}
}

func TestPauseBlocksEscalation(t *testing.T) {
	f := newFixture(t)
	f.withPolicy(t)
	a := f.openAccount(t, 45)
	ctx := context.Background()

	if _, err := f.svc.SetPause(ctx, a.ID, nil); err != nil {
		t.Fatal(err)
	}
	_, moved, err := f.svc.Advance(ctx, a.ID, time.Now())
	if err != nil || moved {
		t.Fatalf("paused account escalated: moved=%v err=%v", moved, err)
	}

	if _, err := f.svc.ClearPause(ctx, a.ID); err != nil {
		t.Fatal(err)
	}
	_, moved, err = f.svc.Advance(ctx, a.ID, time.Now())
	if err != nil || !moved {
		t.Fatalf("unpaused account must escalate: moved=%v err=%v", moved, err)
	}
}

func TestApproveWriteOff(t *testing.T) {
	f := newFixture(t)
	a := f.openAccount(t, 45)
	ctx := context.Background()

	_, err := f.svc.ApproveWriteOff(ctx, a.ID, "", "hardship", time.Now())
	if !errors.Is(err, ErrApproverRequired) {
		t.Fatalf("expected ErrApproverRequired, got %v", err)
	}

	if _, err := f.svc.ApproveWriteOff(ctx, a.ID, "founder@example.com", "", time.Now()); err == nil {
		t.Fatal("expected error for missing reason")
	}

	rec, err := f.svc.ApproveWriteOff(ctx, a.ID, "founder@example.com", "documented hardship", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if !rec.WriteOffAmount.Equal(decimal.NewFromInt(570)) {
		t.Errorf("got write-off amount %s, want 570", rec.WriteOffAmount)
	}
	if rec.ApprovedBy != "founder@example.com" {
		t.Errorf("got approver %s", rec.ApprovedBy)
	}

	got, err := f.svc.GetAccount(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.CurrentState != StateWrittenOff {
		t.Errorf("got state %s, want written_off", got.CurrentState)
	}
	if !got.BalanceDue.IsZero() {
		t.Errorf("written-off balance must be zero, got %s", got.BalanceDue)
	}

	// A second write-off on the same account is rejected.
	if _, err := f.svc.ApproveWriteOff(ctx, a.ID, "founder@example.com", "again", time.Now()); !errors.Is(err, ErrAccountTerminal) {
		t.Fatalf("expected ErrAccountTerminal, got %v", err)
	}
}

func TestPlanBranchHooks(t *testing.T) {
	f := newFixture(t)
	a := f.openAccount(t, 100)
	ctx := context.Background()

	if err := f.svc.OnPlanActivated(ctx, a.ID); err != nil {
		t.Fatal(err)
	}
	got, _ := f.svc.GetAccount(ctx, a.ID)
	if got.CurrentState != StatePaymentPlanActive {
		t.Fatalf("got state %s, want payment_plan_active", got.CurrentState)
	}

	if err := f.svc.OnPlanDefaulted(ctx, a.ID); err != nil {
		t.Fatal(err)
	}
	got, _ = f.svc.GetAccount(ctx, a.ID)
	if got.CurrentState != StateFounderDecision90 {
		t.Fatalf("defaulted plan at 100 days must land on founder gate, got %s", got.CurrentState)
	}
	call, ok := f.notifier.last()
	if !ok || call.templateID != notification.TemplatePlanDefaulted {
		t.Errorf("expected plan-defaulted notice, got %+v", call)
	}
}

func TestPlanInstallmentsReduceBalanceBeforeDefault(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.OpenAccount(ctx, "org-1", OpenAccountInput{
		PatientRef:     "patient-1",
		PatientContact: "patient@example.com",
		StatementRef:   "stmt-1",
		BalanceDue:     decimal.NewFromInt(600),
		DueDate:        time.Now().AddDate(0, 0, -40),
	})
	if err != nil {
		t.Fatalf("open account: %v", err)
	}

	if err := f.svc.OnPlanActivated(ctx, a.ID); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		if err := f.svc.OnPlanInstallment(ctx, a.ID, decimal.NewFromInt(100)); err != nil {
			t.Fatalf("installment %d: %v", i+1, err)
		}
	}
	if err := f.svc.OnPlanDefaulted(ctx, a.ID); err != nil {
		t.Fatal(err)
	}

	got, _ := f.svc.GetAccount(ctx, a.ID)
	if !got.BalanceDue.Equal(decimal.NewFromInt(100)) {
		t.Errorf("got balance %s after 500 paid of 600, want 100", got.BalanceDue)
	}
	if got.CurrentState != StateFollowup30 {
		t.Errorf("got state %s, want followup_30", got.CurrentState)
	}
	call, ok := f.notifier.last()
	if !ok || call.templateID != notification.TemplatePlanDefaulted {
		t.Fatalf("expected plan-defaulted notice, got %+v", call)
	}
	if call.data["balance"] != "$100.00" {
		t.Errorf("defaulted notice balance = %s, want $100.00", call.data["balance"])
	}
}

func TestPlanCompletedResolvesAccount(t *testing.T) {
	f := newFixture(t)
	a := f.openAccount(t, 40)
	ctx := context.Background()

	if err := f.svc.OnPlanActivated(ctx, a.ID); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.OnPlanCompleted(ctx, a.ID); err != nil {
		t.Fatal(err)
	}
	got, _ := f.svc.GetAccount(ctx, a.ID)
	if got.ResolvedAt == nil {
		t.Error("completed plan must resolve the account")
	}
	if !got.BalanceDue.IsZero() {
		t.Errorf("got balance %s, want 0", got.BalanceDue)
	}
}

func TestPolicyVersionsMonotonic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p1, err := f.svc.CreatePolicyVersion(ctx, "org-1", "founder@example.com", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	p2, err := f.svc.CreatePolicyVersion(ctx, "org-1", "founder@example.com", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if p1.PolicyVersion != 1 || p2.PolicyVersion != 2 {
		t.Errorf("got versions %d, %d; want 1, 2", p1.PolicyVersion, p2.PolicyVersion)
	}
	if !p2.InternalOnly || !p2.NeverExternalCollections {
		t.Error("every policy version must carry the internal-only guarantees")
	}
}

func TestLockPolicyRejectsSecondLock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.CreatePolicyVersion(ctx, "org-1", "founder@example.com", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	locked, err := f.svc.LockPolicy(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if locked.LockedAt == nil {
		t.Fatal("expected locked_at set")
	}
	if _, err := f.svc.LockPolicy(ctx, p.ID); !errors.Is(err, ErrPolicyLocked) {
		t.Fatalf("expected ErrPolicyLocked, got %v", err)
	}
}

func TestSweepableExcludesBranchesAndTerminal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	active := f.openAccount(t, 20)
	planned := f.openAccount(t, 20)
	written := f.openAccount(t, 20)

	if err := f.svc.OnPlanActivated(ctx, planned.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.ApproveWriteOff(ctx, written.ID, "founder@example.com", "hardship", time.Now()); err != nil {
		t.Fatal(err)
	}

	ids, err := f.svc.SweepableAccounts(ctx, 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != active.ID {
		t.Fatalf("expected only the active account to be sweepable, got %v", ids)
	}
}
