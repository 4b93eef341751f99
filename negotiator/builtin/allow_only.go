package builtin

import (
	"context"
	"crypto/x509"

	"provideragent/negotiator"
	"provideragent/negotiator/rulestore"

	"provideragent/market/property"
)

// AllowOnly consults the rulestore's AllowOnly rule. When disabled it
// admits unconditionally. When enabled, it requires a valid signed node
// descriptor and applies the rule's Mode to decide admission; an
// invalid or absent signature degrades to "unsigned", which modes All
// and Whitelist both reject (mode None rejects every requestor).
type AllowOnly struct {
	rules      *rulestore.Store
	trustedCAs *x509.CertPool
}

// NewAllowOnly constructs an AllowOnly component reading from rules and
// verifying certificate chains against trustedCAs (nil skips checking an
// attached chain against trusted roots; an attached certificate's key
// is still the one the signature is verified with).
func NewAllowOnly(rules *rulestore.Store, trustedCAs *x509.CertPool) *AllowOnly {
	return &AllowOnly{rules: rules, trustedCAs: trustedCAs}
}

func (a *AllowOnly) Name() string { return "AllowOnly" }

func (a *AllowOnly) NegotiateStep(ctx context.Context, demand, offer property.Set) (negotiator.Decision, error) {
	snap := a.rules.List()
	rule := snap.Rule(rulestore.KindAllowOnly)
	if !rule.Enabled {
		return negotiator.ReadyWith(offer), nil
	}

	sd := classifyDemand(demand, a.trustedCAs)

	switch rule.Mode {
	case rulestore.ModeNone:
		return negotiator.RejectWith("AllowOnly rule mode is None: no requestor is admitted", true), nil

	case rulestore.ModeAll:
		if sd.Signed {
			return negotiator.ReadyWith(offer), nil
		}
		return negotiator.RejectWith("AllowOnly requires a valid signed node descriptor", true), nil

	case rulestore.ModeWhitelist:
		if !sd.Signed {
			return negotiator.RejectWith("AllowOnly requires a valid signed node descriptor", true), nil
		}
		identityMatch := snap.HasIdentity(rulestore.KindAllowOnly, sd.Issuer)
		certMatch := sd.Verified.CertFingerprint != "" && snap.HasCertificate(rulestore.KindAllowOnly, sd.Verified.CertFingerprint)
		if identityMatch || certMatch {
			return negotiator.ReadyWith(offer), nil
		}
		return negotiator.RejectWith("Requestor's NodeId is not on the AllowOnly whitelist", true), nil

	default:
		return negotiator.RejectWith("AllowOnly rule has an unrecognized mode", true), nil
	}
}

func (a *AllowOnly) OnAgreementApproved(id negotiator.AgreementID) error                  { return nil }
func (a *AllowOnly) OnAgreementTerminated(id negotiator.AgreementID, result string) error { return nil }
func (a *AllowOnly) OnProposalRejected(id negotiator.ProposalID) error                    { return nil }
