// Package negotiator composes the pluggable policy components (package
// builtin) into a single accept/counter/reject decision for an incoming
// demand/offer pair, per SPEC_FULL.md §4.C-D.
package negotiator

import "provideragent/market/property"

// DecisionKind is a fixed, exhaustively-switched set — a tagged variant
// rather than an interface, matching the teacher's message-kind-byte
// idiom in p2p/protocol.go.
type DecisionKind int

const (
	// Ready means the component has nothing to add; the pipeline moves
	// to the next component, carrying the Decision's Offer forward when
	// it is non-nil.
	Ready DecisionKind = iota
	// Negotiating means the component mutated the offer and the
	// pipeline should restart from the component immediately after it.
	Negotiating
	// Reject short-circuits the pipeline.
	Reject
)

func (k DecisionKind) String() string {
	switch k {
	case Ready:
		return "ready"
	case Negotiating:
		return "negotiating"
	case Reject:
		return "reject"
	default:
		return "unknown"
	}
}

// Decision is the result of one component's NegotiateStep.
type Decision struct {
	Kind    DecisionKind
	Offer   property.Set // meaningful for Ready/Negotiating
	Message string       // meaningful for Reject
	Final   bool         // meaningful for Reject: pipeline must not re-propose
}

func ReadyWith(offer property.Set) Decision {
	return Decision{Kind: Ready, Offer: offer}
}

func NegotiatingWith(offer property.Set) Decision {
	return Decision{Kind: Negotiating, Offer: offer}
}

func RejectWith(message string, final bool) Decision {
	return Decision{Kind: Reject, Message: message, Final: final}
}
