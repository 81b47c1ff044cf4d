package collections

import (
	"time"

	"github.com/emsops/emsops/internal/domain/rates"
)

// forwardOrder is the time-ordered escalation path. payment_plan_active and
// written_off are branches, not part of the order.
var forwardOrder = []State{
	StateInitial,
	StateFollowup15,
	StateFollowup30,
	StateFollowup60,
	StateFounderDecision90,
}

// allowedTransitions is the static transition table. Its exhaustiveness is
// the guarantee that no external-collections path exists: a transition into
// any state outside this table cannot be expressed.
var allowedTransitions = map[State][]State{
	StateInitial:           {StateFollowup15, StatePaymentPlanActive, StateWrittenOff},
	StateFollowup15:        {StateFollowup30, StatePaymentPlanActive, StateWrittenOff},
	StateFollowup30:        {StateFollowup60, StatePaymentPlanActive, StateWrittenOff},
	StateFollowup60:        {StateFounderDecision90, StatePaymentPlanActive, StateWrittenOff},
	StateFounderDecision90: {StatePaymentPlanActive, StateWrittenOff},
	StatePaymentPlanActive: {StateInitial, StateFollowup15, StateFollowup30, StateFollowup60, StateFounderDecision90, StateWrittenOff},
	StateWrittenOff:        {},
}

// CanTransition reports whether from -> to appears in the transition table.
func CanTransition(from, to State) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// stateForDays maps an elapsed-days count onto the escalation path using the
// organization's thresholds.
func stateForDays(days int, rc *rates.RateConfig) State {
	switch {
	case days >= rc.FounderDecisionDays:
		return StateFounderDecision90
	case days >= rc.FollowupDays60:
		return StateFollowup60
	case days >= rc.FollowupDays30:
		return StateFollowup30
	case days >= rc.FollowupDays15:
		return StateFollowup15
	default:
		return StateInitial
	}
}

func stateIndex(s State) int {
	for i, st := range forwardOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// AdvanceAccount computes one escalation step for an account. It is a pure
// transition function: the caller (sweep or handler) persists the result and
// fires boundary effects afterwards.
//
// The account is promoted forward at most one threshold per call, derived
// from days since due, so running a sweep twice in a period cannot
// double-advance. Returns the updated copy and whether a transition fired.
// At founder_decision_90 all automated movement is frozen and
// ErrDecisionPending is returned as a retryable signal.
func AdvanceAccount(acct CollectionsAccount, policy *CollectionsPolicy, rc *rates.RateConfig, now time.Time) (CollectionsAccount, bool, error) {
	if err := policy.Validate(); err != nil {
		return acct, false, err
	}
	if acct.Terminal() {
		return acct, false, ErrAccountTerminal
	}
	if acct.CurrentState == StateFounderDecision90 {
		return acct, false, ErrDecisionPending
	}
	if acct.CurrentState == StatePaymentPlanActive || acct.Paused(now) {
		return acct, false, nil
	}

	idx := stateIndex(acct.CurrentState)
	if idx < 0 || idx >= len(forwardOrder)-1 {
		return acct, false, nil
	}
	next := forwardOrder[idx+1]

	target := stateForDays(acct.DaysSinceDue(now), rc)
	if stateIndex(target) <= idx {
		return acct, false, nil
	}

	// Exactly one threshold per sweep, no skipping.
	acct.CurrentState = next
	if next == StateFounderDecision90 {
		acct.RequiresFounderDecision = true
	}
	return acct, true, nil
}

// ReturnFromPlan computes the state an account re-enters when its payment
// plan defaults: the ordinary escalation state for its recomputed days since
// due, with no credit for time spent on the plan.
func ReturnFromPlan(acct CollectionsAccount, rc *rates.RateConfig, now time.Time) CollectionsAccount {
	target := stateForDays(acct.DaysSinceDue(now), rc)
	acct.CurrentState = target
	acct.RequiresFounderDecision = target == StateFounderDecision90
	return acct
}
