package builtin

import (
	"context"
	"crypto/x509"

	"provideragent/market/property"
	"provideragent/negotiator"
	"provideragent/negotiator/rulestore"
)

// Blacklist is the verdict-inverted mirror of AllowOnly. When enabled,
// mode Whitelist rejects a requestor whose identity or certificate
// appears on the block-list and admits the rest; mode All rejects every
// requestor that has an issuer; mode None admits everyone. A demand
// with no issuer is admitted. An invalid/absent signature degrades to
// "unsigned" and is never, by itself, a reason to reject.
type Blacklist struct {
	rules      *rulestore.Store
	trustedCAs *x509.CertPool
}

func NewBlacklist(rules *rulestore.Store, trustedCAs *x509.CertPool) *Blacklist {
	return &Blacklist{rules: rules, trustedCAs: trustedCAs}
}

func (b *Blacklist) Name() string { return "Blacklist" }

func (b *Blacklist) NegotiateStep(ctx context.Context, demand, offer property.Set) (negotiator.Decision, error) {
	snap := b.rules.List()
	rule := snap.Rule(rulestore.KindBlacklist)
	if !rule.Enabled {
		return negotiator.ReadyWith(offer), nil
	}

	sd := classifyDemand(demand, b.trustedCAs)
	if !sd.HasIssuer {
		return negotiator.ReadyWith(offer), nil
	}

	switch rule.Mode {
	case rulestore.ModeAll:
		return negotiator.RejectWith("Requestor's NodeId is on the blacklist", true), nil
	case rulestore.ModeNone:
		return negotiator.ReadyWith(offer), nil
	case rulestore.ModeWhitelist:
		identityMatch := snap.HasIdentity(rulestore.KindBlacklist, sd.Issuer)
		certMatch := sd.Signed && sd.Verified.CertFingerprint != "" && snap.HasCertificate(rulestore.KindBlacklist, sd.Verified.CertFingerprint)
		if identityMatch || certMatch {
			return negotiator.RejectWith("Requestor's NodeId is on the blacklist", true), nil
		}
		return negotiator.ReadyWith(offer), nil
	default:
		return negotiator.ReadyWith(offer), nil
	}
}

func (b *Blacklist) OnAgreementApproved(id negotiator.AgreementID) error                  { return nil }
func (b *Blacklist) OnAgreementTerminated(id negotiator.AgreementID, result string) error { return nil }
func (b *Blacklist) OnProposalRejected(id negotiator.ProposalID) error                    { return nil }
