package rulestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"provideragent/crypto"
)

// ErrCorrupt is returned by LoadOrCreate when the on-disk document exists
// but cannot be parsed. Callers do not auto-repair (SPEC_FULL.md §4.A).
var ErrCorrupt = errors.New("rulestore: corrupt rule document")

// Store is a single JSON-file-backed RuleSet with one mutation lock per
// process plus an advisory OS file lock for multi-process safety.
type Store struct {
	path string
	mu   sync.Mutex
	flk  *flock.Flock

	rules map[Kind]Rule
}

// LoadOrCreate opens the rule document at path, creating an empty one
// (all kinds disabled, ModeNone) if it does not exist.
func LoadOrCreate(path string) (*Store, error) {
	s := &Store{
		path: path,
		flk:  flock.New(path + ".lock"),
		rules: map[Kind]Rule{
			KindBlacklist:      {Mode: ModeNone, Identities: map[string]struct{}{}, Certificates: map[string]struct{}{}},
			KindAllowOnly:      {Mode: ModeNone, Identities: map[string]struct{}{}, Certificates: map[string]struct{}{}},
			KindAuditedPayload: {Mode: ModeNone, Identities: map[string]struct{}{}, Certificates: map[string]struct{}{}},
		},
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		if err := s.persistLocked(); err != nil {
			return nil, err
		}
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return s, nil
	}
	var wire map[Kind]wireRule
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	for kind, w := range wire {
		ids := make(map[string]struct{}, len(w.Identities))
		for _, id := range w.Identities {
			ids[id] = struct{}{}
		}
		certs := make(map[string]struct{}, len(w.Certificates))
		for _, c := range w.Certificates {
			certs[c] = struct{}{}
		}
		s.rules[kind] = Rule{Enabled: w.Enabled, Mode: w.Mode, Identities: ids, Certificates: certs}
	}
	return s, nil
}

// List returns an independent snapshot of the current RuleSet.
func (s *Store) List() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[Kind]Rule, len(s.rules))
	for k, r := range s.rules {
		out[k] = cloneRule(r)
	}
	return Snapshot{rules: out}
}

// SetEnabled toggles a rule kind on or off.
func (s *Store) SetEnabled(kind Kind, enabled bool) error {
	return s.mutate(kind, func(r *Rule) { r.Enabled = enabled })
}

// SetMode changes a rule kind's interpretation mode.
func (s *Store) SetMode(kind Kind, mode Mode) error {
	return s.mutate(kind, func(r *Rule) { r.Mode = mode })
}

// AddIdentity adds a NodeId to kind's identity entries.
func (s *Store) AddIdentity(kind Kind, addr crypto.Address) error {
	return s.mutate(kind, func(r *Rule) { r.Identities[addr.String()] = struct{}{} })
}

// RemoveIdentity removes a NodeId from kind's identity entries.
func (s *Store) RemoveIdentity(kind Kind, addr crypto.Address) error {
	return s.mutate(kind, func(r *Rule) { delete(r.Identities, addr.String()) })
}

// AddCertificate adds a certificate fingerprint to kind's entries.
func (s *Store) AddCertificate(kind Kind, fingerprint string) error {
	return s.mutate(kind, func(r *Rule) { r.Certificates[fingerprint] = struct{}{} })
}

// RemoveCertificate removes a certificate fingerprint from kind's entries.
func (s *Store) RemoveCertificate(kind Kind, fingerprint string) error {
	return s.mutate(kind, func(r *Rule) { delete(r.Certificates, fingerprint) })
}

func (s *Store) mutate(kind Kind, fn func(*Rule)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	locked, err := s.flk.TryLock()
	if err != nil {
		return fmt.Errorf("rulestore: acquiring file lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("rulestore: rule document is locked by another process")
	}
	defer s.flk.Unlock()

	r, ok := s.rules[kind]
	if !ok {
		r = Rule{Mode: ModeNone, Identities: map[string]struct{}{}, Certificates: map[string]struct{}{}}
	} else {
		r = cloneRule(r)
	}
	fn(&r)
	s.rules[kind] = r
	return s.persistLocked()
}

// persistLocked performs a full read-modify-write rewrite: write to a
// temp file in the same directory, fsync, then rename over the target —
// an atomic replace on the same filesystem, matching
// crypto.SaveToKeystore's temp-then-rename idiom.
func (s *Store) persistLocked() error {
	wire := make(map[Kind]wireRule, len(s.rules))
	for kind, r := range s.rules {
		ids := make([]string, 0, len(r.Identities))
		for id := range r.Identities {
			ids = append(ids, id)
		}
		certs := make([]string, 0, len(r.Certificates))
		for c := range r.Certificates {
			certs = append(certs, c)
		}
		wire[kind] = wireRule{Enabled: r.Enabled, Mode: r.Mode, Identities: ids, Certificates: certs}
	}
	data, err := json.MarshalIndent(wire, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "rules-")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Chmod(s.path, 0o600)
}
