// Package builtin implements the concrete negotiator components:
// MaxAgreements, AllowOnly, Blacklist, and AuditedPayload
// (SPEC_FULL.md §4.C), grounded on the teacher's guarded-map bookkeeping
// style in p2p/reputation.go.
package builtin

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"provideragent/market/property"
	"provideragent/negotiator"
)

// ErrOverCapacity is returned by OnAgreementApproved when the agreement
// is recorded despite the simultaneous-agreement limit already being
// reached. Per spec.md §9's Open Question, the source inserts the ID
// regardless of capacity: the market should not have called this, and
// callers log the violation and continue rather than treat it as fatal.
var ErrOverCapacity = errors.New("max_agreements: agreement approved over capacity")

// MaxAgreements admits a proposal only while fewer than Max agreements
// are live. It tracks live agreement IDs directly; approval/termination
// notifications are the only mutation points.
type MaxAgreements struct {
	mu   sync.Mutex
	max  int
	live map[negotiator.AgreementID]struct{}
}

// NewMaxAgreements constructs a MaxAgreements component with the given
// simultaneous-agreement limit.
func NewMaxAgreements(max int) *MaxAgreements {
	return &MaxAgreements{max: max, live: make(map[negotiator.AgreementID]struct{})}
}

func (m *MaxAgreements) Name() string { return "MaxAgreements" }

func (m *MaxAgreements) NegotiateStep(ctx context.Context, demand, offer property.Set) (negotiator.Decision, error) {
	m.mu.Lock()
	count := len(m.live)
	m.mu.Unlock()

	if count < m.max {
		return negotiator.ReadyWith(offer), nil
	}
	return negotiator.RejectWith(
		fmt.Sprintf("simultaneous agreement limit reached (%d/%d)", count, m.max),
		false,
	), nil
}

// OnAgreementApproved records id as live. If the component is already at
// capacity, the ID is still recorded (matching the source behaviour) and
// ErrOverCapacity is returned so the caller can log a contract
// violation without the component panicking or silently dropping state.
func (m *MaxAgreements) OnAgreementApproved(id negotiator.AgreementID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	over := len(m.live) >= m.max
	m.live[id] = struct{}{}
	if over {
		return fmt.Errorf("%w: id=%s", ErrOverCapacity, id)
	}
	return nil
}

// OnAgreementTerminated removes id from the live set. Duplicate
// termination is idempotent: removing an absent key is a no-op.
func (m *MaxAgreements) OnAgreementTerminated(id negotiator.AgreementID, result string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.live, id)
	return nil
}

func (m *MaxAgreements) OnProposalRejected(id negotiator.ProposalID) error { return nil }

// FreeSlots reports how many additional agreements can currently be
// admitted.
func (m *MaxAgreements) FreeSlots() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	free := m.max - len(m.live)
	if free < 0 {
		return 0
	}
	return free
}
