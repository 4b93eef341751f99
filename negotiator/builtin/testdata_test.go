package builtin

import (
	"crypto/sha256"
	"encoding/json"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"provideragent/crypto"
	"provideragent/market/descriptor"
	"provideragent/market/property"
)

// signedDemandSet builds a demand property.Set carrying an issuer and a
// validly-signed node descriptor for that issuer's key.
func signedDemandSet(t *testing.T, priv *crypto.PrivateKey) property.Set {
	t.Helper()
	addr := priv.PubKey().Address()

	desc := descriptor.Descriptor{NodeID: addr.String()}
	canonical, err := json.Marshal(desc)
	if err != nil {
		t.Fatalf("marshal descriptor: %v", err)
	}
	digest := sha256.Sum256(canonical)
	sig, err := ethcrypto.Sign(digest[:], priv.PrivateKey)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	env := descriptor.Envelope{Descriptor: desc, Signature: sig}
	raw, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}

	return property.Set{
		propIssuer:         {Explicit: true, Value: property.String(addr.String())},
		propNodeDescriptor: {Explicit: true, Value: property.String(string(raw))},
	}
}

// unsignedDemandSet builds a demand carrying only an issuer, no
// descriptor.
func unsignedDemandSet(addr crypto.Address) property.Set {
	return property.Set{
		propIssuer: {Explicit: true, Value: property.String(addr.String())},
	}
}

func mustGenerateKey(t *testing.T) *crypto.PrivateKey {
	t.Helper()
	priv, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	return priv
}
