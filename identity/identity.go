// Package identity is the provider's node-identity provider (SPEC_FULL.md
// §4.I): enumerates the ECDSA keystore files in a directory and resolves
// the default identity used to sign proposals and payments, grounded on
// the teacher's file-per-key keystore layout (crypto/keystore.go) and its
// node-key bootstrap (cmd/nhb-node's key-loading startup path).
package identity

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"provideragent/crypto"
)

// ErrNoDefaultIdentity is returned by GetDefault when the directory has
// no `default` pointer file, or the pointer names a key that isn't
// present. A provider agent cannot start without one (SPEC_FULL.md §4.I).
var ErrNoDefaultIdentity = errors.New("identity: no default identity configured")

// Identity is one ECDSA keystore entry available to sign on behalf of
// this node.
type Identity struct {
	Address crypto.Address
	Path    string
}

// Provider resolves available node identities from a directory of
// Ethereum v3 keystore files plus a `default` pointer file naming the
// file (by base name) to use when none is specified explicitly.
type Provider struct {
	dir string
}

// New constructs a Provider rooted at dir. dir is not created here —
// it must already exist, matching the teacher's treatment of the
// node-key directory as operator-provisioned.
func New(dir string) *Provider {
	return &Provider{dir: dir}
}

// List enumerates every keystore file in the directory, skipping the
// `default` pointer file itself and any file that fails to parse as an
// address (so a stray README or lockfile does not abort startup).
func (p *Provider) List(ctx context.Context) ([]Identity, error) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return nil, err
	}
	var out []Identity
	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == "default" {
			continue
		}
		addr, ok := addressFromKeystoreName(entry.Name())
		if !ok {
			continue
		}
		out = append(out, Identity{Address: addr, Path: filepath.Join(p.dir, entry.Name())})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// GetDefault reads the `default` pointer file and resolves it against
// the directory listing. A missing pointer file, or one naming a
// keystore that no longer exists, is ErrNoDefaultIdentity — a fatal
// startup condition, not a soft miss.
func (p *Provider) GetDefault(ctx context.Context) (Identity, error) {
	pointerPath := filepath.Join(p.dir, "default")
	raw, err := os.ReadFile(pointerPath)
	if err != nil {
		if os.IsNotExist(err) {
			return Identity{}, ErrNoDefaultIdentity
		}
		return Identity{}, err
	}
	name := strings.TrimSpace(string(raw))
	if name == "" {
		return Identity{}, ErrNoDefaultIdentity
	}

	identities, err := p.List(ctx)
	if err != nil {
		return Identity{}, err
	}
	for _, id := range identities {
		if filepath.Base(id.Path) == name {
			return id, nil
		}
	}
	return Identity{}, ErrNoDefaultIdentity
}

// addressFromKeystoreName extracts the bech32 address from the
// standard go-ethereum keystore file name convention
// (UTC--<timestamp>--<address-hex>), falling back to treating the
// whole name as a bech32 address for manually-named files.
func addressFromKeystoreName(name string) (crypto.Address, bool) {
	if idx := strings.LastIndex(name, "--"); idx >= 0 && idx+2 < len(name) {
		hexPart := name[idx+2:]
		if b, ok := decodeHexAddress(hexPart); ok {
			addr, err := crypto.NewAddress(crypto.NHBPrefix, b)
			if err == nil {
				return addr, true
			}
		}
	}
	if addr, err := crypto.DecodeAddress(name); err == nil {
		return addr, true
	}
	return crypto.Address{}, false
}

func decodeHexAddress(s string) ([]byte, bool) {
	if len(s) != 40 {
		return nil, false
	}
	out := make([]byte, 20)
	for i := 0; i < 20; i++ {
		hi, ok1 := hexDigit(s[i*2])
		lo, ok2 := hexDigit(s[i*2+1])
		if !ok1 || !ok2 {
			return nil, false
		}
		out[i] = hi<<4 | lo
	}
	return out, true
}

func hexDigit(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}
