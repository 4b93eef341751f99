// Package rulestore persists and evaluates the admission RuleSet: the
// per-kind allow-list / block-list / audited-payload configuration
// consulted by the negotiator's builtin components.
package rulestore

import "provideragent/crypto"

// Kind identifies one of the three rule-gated negotiator components.
type Kind string

const (
	KindBlacklist      Kind = "Blacklist"
	KindAllowOnly      Kind = "AllowOnly"
	KindAuditedPayload Kind = "AuditedPayload"
)

// Mode controls how a rule's entries are interpreted.
type Mode string

const (
	ModeAll       Mode = "All"
	ModeNone      Mode = "None"
	ModeWhitelist Mode = "Whitelist"
)

// Rule is the per-kind configuration: whether it is enabled, how its
// entries are interpreted, and the identity/certificate entries
// themselves.
type Rule struct {
	Enabled      bool                `json:"enabled"`
	Mode         Mode                `json:"mode"`
	Identities   map[string]struct{} `json:"-"`
	Certificates map[string]struct{} `json:"-"`
}

// wireRule is the on-disk shape per spec.md §6: identities/certificates
// are JSON arrays, not objects.
type wireRule struct {
	Enabled      bool     `json:"enabled"`
	Mode         Mode     `json:"mode"`
	Identities   []string `json:"identities"`
	Certificates []string `json:"certificates"`
}

// Snapshot is an immutable, independently-owned copy of the RuleSet
// returned by List. Components read snapshots; they never hold a
// mutation handle on the store itself (SPEC_FULL.md §4.A).
type Snapshot struct {
	rules map[Kind]Rule
}

// Rule returns the configuration for kind, or the zero value (disabled,
// ModeNone, empty sets) if kind was never configured.
func (s Snapshot) Rule(kind Kind) Rule {
	r, ok := s.rules[kind]
	if !ok {
		return Rule{Mode: ModeNone, Identities: map[string]struct{}{}, Certificates: map[string]struct{}{}}
	}
	return r
}

// HasIdentity reports whether addr is present in kind's identity entries.
func (s Snapshot) HasIdentity(kind Kind, addr crypto.Address) bool {
	r := s.Rule(kind)
	_, ok := r.Identities[addr.String()]
	return ok
}

// HasCertificate reports whether fingerprint is present in kind's
// certificate entries.
func (s Snapshot) HasCertificate(kind Kind, fingerprint string) bool {
	r := s.Rule(kind)
	_, ok := r.Certificates[fingerprint]
	return ok
}

func cloneRule(r Rule) Rule {
	ids := make(map[string]struct{}, len(r.Identities))
	for k := range r.Identities {
		ids[k] = struct{}{}
	}
	certs := make(map[string]struct{}, len(r.Certificates))
	for k := range r.Certificates {
		certs[k] = struct{}{}
	}
	return Rule{Enabled: r.Enabled, Mode: r.Mode, Identities: ids, Certificates: certs}
}
