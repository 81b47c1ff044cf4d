package collections

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/emsops/emsops/internal/domain/rates"
)

func testPolicy() *CollectionsPolicy {
	return &CollectionsPolicy{
		OrgID:                    "org-1",
		PolicyVersion:            1,
		InternalOnly:             true,
		NeverExternalCollections: true,
		Immutable:                true,
		ApprovedBy:               "founder@example.com",
		ApprovedAt:               time.Now(),
	}
}

func accountDueDaysAgo(days int, now time.Time) CollectionsAccount {
	return CollectionsAccount{
		OrgID:        "org-1",
		PatientRef:   "patient-1",
		StatementRef: "stmt-1",
		BalanceDue:   decimal.NewFromInt(570),
		DueDate:      now.AddDate(0, 0, -days),
		CurrentState: StateInitial,
	}
}

func TestAdvanceAccountPromotesOneStepPerSweep(t *testing.T) {
	now := time.Now()
	rc := rates.Defaults("org-1")
	policy := testPolicy()

	// 91 days past due: the target is founder_decision_90, but each sweep
	// moves exactly one threshold.
	acct := accountDueDaysAgo(91, now)

	want := []State{StateFollowup15, StateFollowup30, StateFollowup60, StateFounderDecision90}
	for _, expected := range want {
		updated, moved, err := AdvanceAccount(acct, policy, rc, now)
		if err != nil {
			t.Fatalf("AdvanceAccount from %s: %v", acct.CurrentState, err)
		}
		if !moved {
			t.Fatalf("expected transition from %s", acct.CurrentState)
		}
		if updated.CurrentState != expected {
			t.Fatalf("got %s, want %s", updated.CurrentState, expected)
		}
		acct = updated
	}
	if !acct.RequiresFounderDecision {
		t.Error("expected requires_founder_decision after reaching the founder gate")
	}

	// Frozen at the founder gate: further sweeps signal, never move.
	_, moved, err := AdvanceAccount(acct, policy, rc, now)
	if !errors.Is(err, ErrDecisionPending) {
		t.Fatalf("expected ErrDecisionPending, got %v", err)
	}
	if moved {
		t.Error("no transition may fire at founder_decision_90")
	}
}

func TestAdvanceAccountIdempotentWithinPeriod(t *testing.T) {
	now := time.Now()
	rc := rates.Defaults("org-1")
	policy := testPolicy()

	acct := accountDueDaysAgo(20, now)

	updated, moved, err := AdvanceAccount(acct, policy, rc, now)
	if err != nil || !moved {
		t.Fatalf("first sweep: moved=%v err=%v", moved, err)
	}
	if updated.CurrentState != StateFollowup15 {
		t.Fatalf("got %s, want followup_15", updated.CurrentState)
	}

	// Second sweep in the same period: days still map to followup_15.
	again, moved, err := AdvanceAccount(updated, policy, rc, now)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if moved {
		t.Errorf("double sweep must not double-advance, got %s", again.CurrentState)
	}
}

func TestAdvanceAccountBeforeFirstThreshold(t *testing.T) {
	now := time.Now()
	acct := accountDueDaysAgo(10, now)

	_, moved, err := AdvanceAccount(acct, testPolicy(), rates.Defaults("org-1"), now)
	if err != nil {
		t.Fatal(err)
	}
	if moved {
		t.Error("account under 15 days past due must stay initial")
	}
}

func TestAdvanceAccountPauseFreezesClock(t *testing.T) {
	now := time.Now()
	rc := rates.Defaults("org-1")
	policy := testPolicy()

	acct := accountDueDaysAgo(45, now)
	acct.PaymentPauseActive = true
	if _, moved, err := AdvanceAccount(acct, policy, rc, now); err != nil || moved {
		t.Fatalf("paused account advanced: moved=%v err=%v", moved, err)
	}

	acct.PaymentPauseActive = false
	hold := now.Add(48 * time.Hour)
	acct.EscalationHoldUntil = &hold
	if _, moved, err := AdvanceAccount(acct, policy, rc, now); err != nil || moved {
		t.Fatalf("held account advanced: moved=%v err=%v", moved, err)
	}

	// Hold expired: escalation resumes.
	expired := now.Add(-time.Hour)
	acct.EscalationHoldUntil = &expired
	if _, moved, err := AdvanceAccount(acct, policy, rc, now); err != nil || !moved {
		t.Fatalf("expired hold must resume escalation: moved=%v err=%v", moved, err)
	}
}

func TestAdvanceAccountPlanActiveIsNoOp(t *testing.T) {
	now := time.Now()
	acct := accountDueDaysAgo(45, now)
	acct.CurrentState = StatePaymentPlanActive

	_, moved, err := AdvanceAccount(acct, testPolicy(), rates.Defaults("org-1"), now)
	if err != nil || moved {
		t.Fatalf("plan-active account must not escalate: moved=%v err=%v", moved, err)
	}
}

func TestAdvanceAccountTerminal(t *testing.T) {
	now := time.Now()
	acct := accountDueDaysAgo(45, now)
	acct.CurrentState = StateWrittenOff

	_, _, err := AdvanceAccount(acct, testPolicy(), rates.Defaults("org-1"), now)
	if !errors.Is(err, ErrAccountTerminal) {
		t.Fatalf("expected ErrAccountTerminal, got %v", err)
	}
}

func TestAdvanceAccountRejectsInvalidPolicy(t *testing.T) {
	now := time.Now()
	acct := accountDueDaysAgo(45, now)

	policy := testPolicy()
	policy.NeverExternalCollections = false

	_, _, err := AdvanceAccount(acct, policy, rates.Defaults("org-1"), now)
	if !errors.Is(err, ErrPolicyInvalid) {
		t.Fatalf("expected ErrPolicyInvalid, got %v", err)
	}
}

func TestAdvanceAccountCustomThresholds(t *testing.T) {
	now := time.Now()
	rc := rates.Defaults("org-1")
	rc.FollowupDays15 = 10

	acct := accountDueDaysAgo(12, now)
	updated, moved, err := AdvanceAccount(acct, testPolicy(), rc, now)
	if err != nil || !moved {
		t.Fatalf("moved=%v err=%v", moved, err)
	}
	if updated.CurrentState != StateFollowup15 {
		t.Fatalf("got %s, want followup_15 under the shortened threshold", updated.CurrentState)
	}
}

func TestNoExternalCollectionsStateExists(t *testing.T) {
	// The transition table is closed over the enumerated states.
	for from, tos := range allowedTransitions {
		if !from.Valid() {
			t.Errorf("transition table contains unknown source state %q", from)
		}
		for _, to := range tos {
			if !to.Valid() {
				t.Errorf("transition %s -> %s targets an unknown state", from, to)
			}
		}
	}
	if State("external_collections").Valid() {
		t.Error("external collections must not be an expressible state")
	}
	if len(allowedTransitions[StateWrittenOff]) != 0 {
		t.Error("written_off must be terminal")
	}
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to State
		want     bool
	}{
		{StateInitial, StateFollowup15, true},
		{StateInitial, StateFollowup30, false},
		{StateFollowup60, StateFounderDecision90, true},
		{StateFounderDecision90, StatePaymentPlanActive, true},
		{StateFounderDecision90, StateWrittenOff, true},
		{StateFounderDecision90, StateFollowup15, false},
		{StateWrittenOff, StateInitial, false},
		{StatePaymentPlanActive, StateFollowup30, true},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestReturnFromPlanRecomputesState(t *testing.T) {
	now := time.Now()
	rc := rates.Defaults("org-1")

	// Plan defaulted 95 days after the due date: straight to the founder
	// gate, no credit for plan time and no one-step constraint.
	acct := accountDueDaysAgo(95, now)
	acct.CurrentState = StatePaymentPlanActive

	updated := ReturnFromPlan(acct, rc, now)
	if updated.CurrentState != StateFounderDecision90 {
		t.Fatalf("got %s, want founder_decision_90", updated.CurrentState)
	}
	if !updated.RequiresFounderDecision {
		t.Error("expected requires_founder_decision set")
	}

	acct = accountDueDaysAgo(40, now)
	acct.CurrentState = StatePaymentPlanActive
	updated = ReturnFromPlan(acct, rc, now)
	if updated.CurrentState != StateFollowup30 {
		t.Fatalf("got %s, want followup_30", updated.CurrentState)
	}
	if updated.RequiresFounderDecision {
		t.Error("requires_founder_decision must be clear below the founder gate")
	}
}

func TestDaysSinceDueFloorsAtZero(t *testing.T) {
	now := time.Now()
	acct := accountDueDaysAgo(-5, now)
	if d := acct.DaysSinceDue(now); d != 0 {
		t.Fatalf("future due date must yield 0 days, got %d", d)
	}
}
