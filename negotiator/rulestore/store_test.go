package rulestore

import (
	"os"
	"path/filepath"
	"testing"

	"provideragent/crypto"
)

func newTestAddress(t *testing.T, b byte) crypto.Address {
	t.Helper()
	addr, err := crypto.NewAddress(crypto.NHBPrefix, append([]byte{b}, make([]byte, 19)...))
	if err != nil {
		t.Fatalf("building test address: %v", err)
	}
	return addr
}

func TestLoadOrCreateThenMutateRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.json")

	store, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("LoadOrCreate: %v", err)
	}

	addr := newTestAddress(t, 0xAA)
	if err := store.SetEnabled(KindBlacklist, true); err != nil {
		t.Fatalf("SetEnabled: %v", err)
	}
	if err := store.SetMode(KindBlacklist, ModeWhitelist); err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	if err := store.AddIdentity(KindBlacklist, addr); err != nil {
		t.Fatalf("AddIdentity: %v", err)
	}

	reopened, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	snap := reopened.List()
	rule := snap.Rule(KindBlacklist)
	if !rule.Enabled || rule.Mode != ModeWhitelist {
		t.Fatalf("expected persisted rule, got %+v", rule)
	}
	if !snap.HasIdentity(KindBlacklist, addr) {
		t.Fatalf("expected identity to survive reload")
	}

	if err := reopened.RemoveIdentity(KindBlacklist, addr); err != nil {
		t.Fatalf("RemoveIdentity: %v", err)
	}
	if reopened.List().HasIdentity(KindBlacklist, addr) {
		t.Fatalf("expected identity removed")
	}
}

func TestCorruptDocumentIsFatal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("writing corrupt file: %v", err)
	}
	if _, err := LoadOrCreate(path); err == nil {
		t.Fatalf("expected error for corrupt document")
	}
}

func TestSnapshotIsIndependentOfSubsequentMutation(t *testing.T) {
	dir := t.TempDir()
	store, err := LoadOrCreate(filepath.Join(dir, "rules.json"))
	if err != nil {
		t.Fatalf("LoadOrCreate: %v", err)
	}
	snap := store.List()
	if err := store.SetEnabled(KindAllowOnly, true); err != nil {
		t.Fatalf("SetEnabled: %v", err)
	}
	if snap.Rule(KindAllowOnly).Enabled {
		t.Fatalf("snapshot must not observe later mutation")
	}
}
