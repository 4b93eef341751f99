package builtin

import (
	"crypto/x509"

	"provideragent/crypto"
	"provideragent/market/descriptor"
	"provideragent/market/property"
)

// signedDemand is the outcome of inspecting a demand for an embedded
// node descriptor: the declared issuer (if any), and whether a valid
// signed descriptor was found for it. A false Signed means "unsigned" —
// never an error — per SPEC_FULL.md §4.C.
type signedDemand struct {
	Issuer     crypto.Address
	HasIssuer  bool
	Verified   descriptor.Verified
	Signed     bool
}

// classifyDemand extracts the issuer and, if present, a verified node
// descriptor from demand. Any structural or verification failure
// degrades to an "unsigned" classification rather than an error.
func classifyDemand(demand property.Set, trustedCAs *x509.CertPool) signedDemand {
	issuerProp, has := demand.Get(propIssuer)
	if !has || issuerProp.Kind != property.KindString {
		return signedDemand{}
	}
	issuer, err := crypto.DecodeAddress(issuerProp.Str)
	if err != nil {
		return signedDemand{}
	}

	descProp, has := demand.Get(propNodeDescriptor)
	if !has || descProp.Kind != property.KindString || descProp.Str == "" {
		return signedDemand{Issuer: issuer, HasIssuer: true}
	}
	env, err := descriptor.Parse([]byte(descProp.Str))
	if err != nil {
		return signedDemand{Issuer: issuer, HasIssuer: true}
	}
	verified, signed := descriptor.Verify(env, issuer, trustedCAs)
	return signedDemand{Issuer: issuer, HasIssuer: true, Verified: verified, Signed: signed}
}
