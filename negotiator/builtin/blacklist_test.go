package builtin

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"provideragent/market/property"
	"provideragent/negotiator"
	"provideragent/negotiator/rulestore"
)

func newTestStore(t *testing.T) *rulestore.Store {
	t.Helper()
	store, err := rulestore.LoadOrCreate(filepath.Join(t.TempDir(), "rules.json"))
	if err != nil {
		t.Fatalf("LoadOrCreate: %v", err)
	}
	return store
}

// Scenario 1: blacklist enabled, identity matches -> final reject.
func TestBlacklistEnabledIdentityMatches(t *testing.T) {
	store := newTestStore(t)
	priv := mustGenerateKey(t)
	addr := priv.PubKey().Address()

	if err := store.SetEnabled(rulestore.KindBlacklist, true); err != nil {
		t.Fatalf("SetEnabled: %v", err)
	}
	if err := store.SetMode(rulestore.KindBlacklist, rulestore.ModeWhitelist); err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	if err := store.AddIdentity(rulestore.KindBlacklist, addr); err != nil {
		t.Fatalf("AddIdentity: %v", err)
	}

	bl := NewBlacklist(store, nil)
	demand := unsignedDemandSet(addr)
	d, err := bl.NegotiateStep(context.Background(), demand, property.Set{})
	if err != nil {
		t.Fatalf("NegotiateStep: %v", err)
	}
	if d.Kind != negotiator.Reject || !d.Final {
		t.Fatalf("expected final reject, got %+v", d)
	}
	if !strings.Contains(strings.ToLower(d.Message), "blacklist") {
		t.Fatalf("expected message to mention blacklist, got %q", d.Message)
	}
}

// Scenario 2: blacklist disabled, any signature (including invalid) -> Ready.
func TestBlacklistDisabledAnySignature(t *testing.T) {
	store := newTestStore(t)
	bl := NewBlacklist(store, nil)

	priv := mustGenerateKey(t)
	addr := priv.PubKey().Address()
	demand := signedDemandSet(t, priv)
	// Corrupt the signature to simulate an invalid one.
	prop := demand[propNodeDescriptor]
	prop.Value = property.String(strings.Replace(prop.Value.Str, "a", "b", 1))
	demand[propNodeDescriptor] = prop
	demand[propIssuer] = property.Property{Explicit: true, Value: property.String(addr.String())}

	d, err := bl.NegotiateStep(context.Background(), demand, property.Set{})
	if err != nil {
		t.Fatalf("NegotiateStep: %v", err)
	}
	if d.Kind != negotiator.Ready {
		t.Fatalf("expected Ready when rule disabled, got %+v", d)
	}
}
