package builtin

import (
	"context"
	"crypto/x509"

	"provideragent/market/property"
	"provideragent/negotiator"
	"provideragent/negotiator/rulestore"
)

// AuditedPayload requires a matching signature per the AuditedPayload
// rule whenever the demand attaches an audited-payload manifest; a
// mismatch rejects. A demand without the manifest property passes
// through unconditionally — this component only gates audited payloads.
type AuditedPayload struct {
	rules      *rulestore.Store
	trustedCAs *x509.CertPool
}

func NewAuditedPayload(rules *rulestore.Store, trustedCAs *x509.CertPool) *AuditedPayload {
	return &AuditedPayload{rules: rules, trustedCAs: trustedCAs}
}

func (a *AuditedPayload) Name() string { return "AuditedPayload" }

func (a *AuditedPayload) NegotiateStep(ctx context.Context, demand, offer property.Set) (negotiator.Decision, error) {
	manifest, has := demand.Get(propAuditedPayload)
	if !has || manifest.Kind != property.KindString || manifest.Str == "" {
		return negotiator.ReadyWith(offer), nil
	}

	snap := a.rules.List()
	rule := snap.Rule(rulestore.KindAuditedPayload)
	if !rule.Enabled {
		return negotiator.ReadyWith(offer), nil
	}

	sd := classifyDemand(demand, a.trustedCAs)
	if !sd.Signed {
		return negotiator.RejectWith("audited payload manifest is present without a valid signature", true), nil
	}

	switch rule.Mode {
	case rulestore.ModeAll:
		return negotiator.ReadyWith(offer), nil
	case rulestore.ModeNone:
		return negotiator.RejectWith("AuditedPayload rule mode is None: no manifest is accepted", true), nil
	case rulestore.ModeWhitelist:
		identityMatch := snap.HasIdentity(rulestore.KindAuditedPayload, sd.Issuer)
		certMatch := sd.Verified.CertFingerprint != "" && snap.HasCertificate(rulestore.KindAuditedPayload, sd.Verified.CertFingerprint)
		if identityMatch || certMatch {
			return negotiator.ReadyWith(offer), nil
		}
		return negotiator.RejectWith("audited payload signer is not on the AuditedPayload whitelist", true), nil
	default:
		return negotiator.RejectWith("AuditedPayload rule has an unrecognized mode", true), nil
	}
}

func (a *AuditedPayload) OnAgreementApproved(id negotiator.AgreementID) error { return nil }
func (a *AuditedPayload) OnAgreementTerminated(id negotiator.AgreementID, result string) error {
	return nil
}
func (a *AuditedPayload) OnProposalRejected(id negotiator.ProposalID) error { return nil }
