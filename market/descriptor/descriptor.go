// Package descriptor parses and verifies the signed node descriptor that
// AllowOnly/Blacklist/AuditedPayload embed in a demand: a JSON blob binding
// a NodeId to an optional certificate chain, signed by the node's key.
//
// Verification never returns an error for a bad signature or a NodeId
// mismatch — per SPEC_FULL.md §4.C those degrade to "unsigned", handled
// by the caller. Parse returns an error only for structurally
// malformed input (the blob itself isn't parseable JSON).
package descriptor

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"provideragent/crypto"
)

// Descriptor is the unsigned payload embedded in a demand's node
// descriptor property.
type Descriptor struct {
	NodeID      string   `json:"nodeId"`
	Certificate []byte   `json:"certificate,omitempty"`
	CertChain   [][]byte `json:"certChain,omitempty"`
}

// Envelope is the signed wrapper carried on the wire.
type Envelope struct {
	Descriptor
	Signature []byte `json:"signature"`
}

// Verified is the outcome of a successful signature + NodeId check.
type Verified struct {
	NodeID          crypto.Address
	CertFingerprint string // sha256 hex of the leaf certificate, empty if unsigned with no cert
}

// Parse decodes the raw descriptor JSON. A structural parse failure is
// the only error case; everything past this point degrades silently.
func Parse(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("descriptor: malformed envelope: %w", err)
	}
	return &env, nil
}

// Verify runs the three-step check from SPEC_FULL.md §4.C:
//  1. parse (already done by the caller via Parse)
//  2. verify the signature chain against trustedCAs, if a certificate
//     chain is attached; otherwise verify the bare ECDSA signature over
//     the canonical descriptor bytes recovers a key matching NodeID
//  3. check the declared NodeId equals the proposal issuer
//
// Verify never errors: any failure surfaces as ok=false, meaning the
// caller should treat the demand as unsigned.
func Verify(env *Envelope, issuer crypto.Address, trustedCAs *x509.CertPool) (Verified, bool) {
	if env == nil {
		return Verified{}, false
	}

	declared, err := crypto.DecodeAddress(env.NodeID)
	if err != nil {
		return Verified{}, false
	}
	if declared.String() != issuer.String() {
		return Verified{}, false
	}

	canonical, err := json.Marshal(env.Descriptor)
	if err != nil {
		return Verified{}, false
	}
	digest := sha256.Sum256(canonical)

	var pub *ecdsa.PublicKey
	if len(env.Certificate) > 0 || len(env.CertChain) > 0 {
		leaf, fingerprint, ok := verifyCertChain(env, trustedCAs)
		if !ok {
			return Verified{}, false
		}
		ecdsaPub, ok := leaf.PublicKey.(*ecdsa.PublicKey)
		if !ok {
			return Verified{}, false
		}
		pub = ecdsaPub
		if !ecdsaVerifyDigest(pub, digest[:], env.Signature) {
			return Verified{}, false
		}
		return Verified{NodeID: declared, CertFingerprint: fingerprint}, true
	}

	recovered, err := ethcrypto.SigToPub(digest[:], env.Signature)
	if err != nil {
		return Verified{}, false
	}
	recoveredAddr := (&crypto.PublicKey{PublicKey: recovered}).Address()
	if recoveredAddr.String() != declared.String() {
		return Verified{}, false
	}
	return Verified{NodeID: declared}, true
}

func verifyCertChain(env *Envelope, trustedCAs *x509.CertPool) (*x509.Certificate, string, bool) {
	raw := env.Certificate
	if len(raw) == 0 && len(env.CertChain) > 0 {
		raw = env.CertChain[0]
	}
	leaf, err := x509.ParseCertificate(raw)
	if err != nil {
		return nil, "", false
	}
	intermediates := x509.NewCertPool()
	var rest [][]byte
	if len(env.CertChain) > 1 {
		rest = env.CertChain[1:]
	}
	for _, der := range rest {
		if cert, err := x509.ParseCertificate(der); err == nil {
			intermediates.AddCert(cert)
		}
	}
	if trustedCAs != nil {
		if _, err := leaf.Verify(x509.VerifyOptions{Roots: trustedCAs, Intermediates: intermediates}); err != nil {
			return nil, "", false
		}
	}
	sum := sha256.Sum256(leaf.Raw)
	return leaf, hex.EncodeToString(sum[:]), true
}

func ecdsaVerifyDigest(pub *ecdsa.PublicKey, digest, sig []byte) bool {
	if len(sig) != 65 {
		return false
	}
	return ethcrypto.VerifySignature(ethcrypto.FromECDSAPub(pub), digest, sig[:64])
}
