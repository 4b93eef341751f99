// Package dao is the transactional payment-artifact storage surface
// (SPEC_FULL.md §4.E): allocations, payments, invoices, debit notes, and
// the sync-notif backoff bookkeeping table, all single-writer and
// transactional over modernc.org/sqlite, grounded on the teacher's
// services/payments-gateway/storage.go SQLite DAO shape.
package dao

import (
	"math/big"
	"time"
)

// ArtifactState is the append-only lifecycle state of an invoice or
// debit note.
type ArtifactState string

const (
	StateIssued   ArtifactState = "Issued"
	StateAccepted ArtifactState = "Accepted"
	StateRejected ArtifactState = "Rejected"
	StateSettled  ArtifactState = "Settled"
)

// Allocation is a reserved pool of funds earmarked for paying
// invoices/debit-notes. Invariant: Spent+Remaining == Total; Spent is
// monotonic; Released is terminal.
type Allocation struct {
	ID        string
	Owner     string
	Platform  string
	Address   string
	Total     *big.Int
	Spent     *big.Int
	Remaining *big.Int
	Released  bool
}

// Payment is a locally-originated payment artifact. Sent=true is
// terminal; there is no unmark.
type Payment struct {
	PaymentID    string
	Payer        string
	Payee        string
	Platform     string
	Amount       *big.Int
	Details      []byte
	Sent         bool
	AllocationID string
	ActivityIDs  []string
	AgreementIDs []string
}

// Invoice is a final bill for an agreement.
type Invoice struct {
	ID         string
	Issuer     string
	Recipient  string
	Amount     *big.Int
	State      ArtifactState
	AcceptSent bool
	RejectSent bool
}

// DebitNote is an interim, incremental bill issued during a running
// activity.
type DebitNote struct {
	ID         string
	Issuer     string
	Recipient  string
	Amount     *big.Int
	State      ArtifactState
	AcceptSent bool
	RejectSent bool
}

// SyncNotif signifies "something for PeerID is unsent". Created when any
// artifact for PeerID becomes dirty; destroyed when the peer
// acknowledges a full sync; capped at MaxRetries.
type SyncNotif struct {
	PeerID   string
	LastPing time.Time
	Retries  int
}
