package builtin

import (
	"context"
	"strings"
	"testing"

	"provideragent/market/property"
	"provideragent/negotiator"
)

func TestMaxAgreementsLimitTwo(t *testing.T) {
	m := NewMaxAgreements(2)
	ctx := context.Background()

	decide := func() negotiator.Decision {
		d, err := m.NegotiateStep(ctx, property.Set{}, property.Set{})
		if err != nil {
			t.Fatalf("NegotiateStep: %v", err)
		}
		return d
	}

	if d := decide(); d.Kind != negotiator.Ready {
		t.Fatalf("expected Ready before any agreement, got %+v", d)
	}
	if err := m.OnAgreementApproved("A"); err != nil {
		t.Fatalf("approving A: %v", err)
	}
	if err := m.OnAgreementApproved("B"); err != nil {
		t.Fatalf("approving B: %v", err)
	}

	d := decide()
	if d.Kind != negotiator.Reject || d.Final {
		t.Fatalf("expected non-final reject at capacity, got %+v", d)
	}
	if !strings.Contains(d.Message, "limit") {
		t.Fatalf("expected message to mention the limit, got %q", d.Message)
	}

	if err := m.OnAgreementTerminated("A", "ok"); err != nil {
		t.Fatalf("terminating A: %v", err)
	}
	if d := decide(); d.Kind != negotiator.Ready {
		t.Fatalf("expected Ready after a slot frees up, got %+v", d)
	}
}

func TestMaxAgreementsOverCapacityApprovalStillRecordsButSignalsViolation(t *testing.T) {
	m := NewMaxAgreements(1)
	if err := m.OnAgreementApproved("A"); err != nil {
		t.Fatalf("first approval should not error: %v", err)
	}
	err := m.OnAgreementApproved("B")
	if err == nil {
		t.Fatalf("expected ErrOverCapacity for the over-limit approval")
	}
	// The ID is still recorded despite the violation (preserves source behaviour):
	// once A is terminated, B alone still holds the only slot.
	if err2 := m.OnAgreementTerminated("A", "ok"); err2 != nil {
		t.Fatalf("terminating A: %v", err2)
	}
	if m.FreeSlots() != 0 {
		t.Fatalf("expected 0 free slots with over-capacity B still live, got %d", m.FreeSlots())
	}
	if err2 := m.OnAgreementTerminated("B", "aborted"); err2 != nil {
		t.Fatalf("terminating over-capacity agreement: %v", err2)
	}
	if m.FreeSlots() != 1 {
		t.Fatalf("expected 1 free slot once B is terminated, got %d", m.FreeSlots())
	}
}

func TestMaxAgreementsDuplicateTerminationIsIdempotent(t *testing.T) {
	m := NewMaxAgreements(2)
	if err := m.OnAgreementApproved("A"); err != nil {
		t.Fatalf("approving A: %v", err)
	}
	if err := m.OnAgreementTerminated("A", "ok"); err != nil {
		t.Fatalf("first termination: %v", err)
	}
	if err := m.OnAgreementTerminated("A", "ok"); err != nil {
		t.Fatalf("duplicate termination must be a no-op, got error: %v", err)
	}
	if m.FreeSlots() != 2 {
		t.Fatalf("expected both slots free, got %d", m.FreeSlots())
	}
}
