package negotiator

import (
	"context"

	"provideragent/market/property"
)

// AgreementID and ProposalID identify the market-level objects the
// builtin components track across negotiate_step calls.
type AgreementID string
type ProposalID string

// Component is the capability set every pluggable policy must implement
// (SPEC_FULL.md §4.C). The pipeline driver depends only on this
// interface, never on a concrete component type.
type Component interface {
	// Name identifies the component for logging and diagnostics.
	Name() string

	// NegotiateStep inspects the demand/offer pair and returns a
	// Decision. A Ready/Negotiating Decision carries the (possibly
	// mutated) offer forward; the pipeline never mutates in place.
	NegotiateStep(ctx context.Context, demand, offer property.Set) (Decision, error)

	// OnAgreementApproved notifies the component that an agreement was
	// approved for a proposal it previously admitted.
	OnAgreementApproved(id AgreementID) error

	// OnAgreementTerminated notifies the component that a previously
	// approved agreement has ended. Idempotent: a duplicate call for the
	// same id is a no-op.
	OnAgreementTerminated(id AgreementID, result string) error

	// OnProposalRejected notifies the component that a proposal it saw
	// was ultimately rejected (by it or a later component).
	OnProposalRejected(id ProposalID) error
}
