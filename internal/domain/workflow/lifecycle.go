package workflow

import (
	"context"
	"fmt"
	"sync"
)

// Built on first use so that package-level state tables are ready
var (
	intentBuilder   = sync.OnceValue(newIntentBuilder)
	issuanceBuilder = sync.OnceValue(newIssuanceBuilder)
)

// newIntentBuilder configures the offline intent lifecycle:
//
//	QUEUED  -SYNC->    POSTING
//	FAILED  -SYNC->    POSTING
//	POSTING -SYNC->    POSTING  (stale replay after a crash)
//	POSTING -SUCCEED-> SYNCED
//	POSTING -FAIL->    FAILED
func newIntentBuilder() StateMachineBuilder {
	b := NewBuilder()
	b.Configure(StateQueued).Permit(TriggerSync, StatePosting)
	b.Configure(StateFailed).Permit(TriggerSync, StatePosting)
	b.Configure(StatePosting).
		Permit(TriggerSync, StatePosting).
		Permit(TriggerSucceed, StateSynced).
		Permit(TriggerFail, StateFailed)
	return b
}

// newIssuanceBuilder configures the issuance lifecycle. Issuances are never
// deleted; voiding is the only transition.
func newIssuanceBuilder() StateMachineBuilder {
	b := NewBuilder()
	b.Configure(StateIssued).Permit(TriggerVoid, StateVoided)
	b.Configure(StateFailed).Permit(TriggerVoid, StateVoided)
	return b
}

// NewIntentMachine returns a machine positioned at the given intent status
func NewIntentMachine(status string) (StateMachine, error) {
	return build(intentBuilder(), status)
}

// NewIssuanceMachine returns a machine positioned at the given issuance status
func NewIssuanceMachine(status string) (StateMachine, error) {
	return build(issuanceBuilder(), status)
}

// Transition fires trigger from status and returns the resulting status
func Transition(ctx context.Context, m StateMachine, trigger Trigger) (string, error) {
	if err := m.Fire(ctx, trigger); err != nil {
		return "", err
	}
	return m.State().String(), nil
}

func build(b StateMachineBuilder, status string) (StateMachine, error) {
	s := State(status)
	if !s.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidState, status)
	}
	return b.Build(s), nil
}
