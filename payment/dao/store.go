package dao

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// ErrInsufficientAllocation is returned when a spend would exceed an
// allocation's remaining balance.
var ErrInsufficientAllocation = errors.New("dao: insufficient allocation remaining")

// ErrAllocationReleased is returned when spending against a released
// allocation is attempted.
var ErrAllocationReleased = errors.New("dao: allocation already released")

// ErrAllocationGone is returned by Get when the allocation is released.
var ErrAllocationGone = errors.New("dao: allocation released")

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("dao: not found")

// Store is the single-writer transactional surface over the payment
// artifact schema. Construct sub-DAOs are exposed as fields so call
// sites read like the spec's contracts: store.Allocations.Spend(...),
// store.Payments.CreateNew(...), store.Invoices.MarkAcceptSent(...).
type Store struct {
	db *sql.DB

	Allocations *AllocationDAO
	Payments    *PaymentDAO
	Invoices    *InvoiceDAO
	DebitNotes  *DebitNoteDAO
	SyncNotifs  *SyncNotifDAO
}

// Open opens (creating if necessary) the SQLite-backed payment store at
// path and runs schema migration.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.Allocations = &AllocationDAO{db: db}
	s.Payments = &PaymentDAO{db: db}
	s.Invoices = &InvoiceDAO{db: db}
	s.DebitNotes = &DebitNoteDAO{db: db}
	s.SyncNotifs = &SyncNotifDAO{db: db}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the underlying database connection is still usable, for
// the health/readiness endpoint.
func (s *Store) Ping() error { return s.db.Ping() }

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS allocations (
            id TEXT PRIMARY KEY,
            owner TEXT NOT NULL,
            platform TEXT NOT NULL,
            address TEXT NOT NULL,
            total TEXT NOT NULL,
            spent TEXT NOT NULL,
            remaining TEXT NOT NULL,
            released INTEGER NOT NULL DEFAULT 0
        );`,
		`CREATE TABLE IF NOT EXISTS payments (
            payment_id TEXT PRIMARY KEY,
            payer TEXT NOT NULL,
            payee TEXT NOT NULL,
            platform TEXT NOT NULL,
            amount TEXT NOT NULL,
            details BLOB,
            sent INTEGER NOT NULL DEFAULT 0,
            allocation_id TEXT NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS payment_activities (
            payment_id TEXT NOT NULL,
            activity_id TEXT NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS payment_agreements (
            payment_id TEXT NOT NULL,
            agreement_id TEXT NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS invoices (
            id TEXT PRIMARY KEY,
            issuer TEXT NOT NULL,
            recipient TEXT NOT NULL,
            amount TEXT NOT NULL,
            state TEXT NOT NULL,
            accept_sent INTEGER NOT NULL DEFAULT 0,
            reject_sent INTEGER NOT NULL DEFAULT 0
        );`,
		`CREATE TABLE IF NOT EXISTS debit_notes (
            id TEXT PRIMARY KEY,
            issuer TEXT NOT NULL,
            recipient TEXT NOT NULL,
            amount TEXT NOT NULL,
            state TEXT NOT NULL,
            accept_sent INTEGER NOT NULL DEFAULT 0,
            reject_sent INTEGER NOT NULL DEFAULT 0
        );`,
		`CREATE TABLE IF NOT EXISTS sync_notifs (
            peer_id TEXT PRIMARY KEY,
            last_ping TIMESTAMP NOT NULL,
            retries INTEGER NOT NULL DEFAULT 0
        );`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("dao: migrating schema: %w", err)
		}
	}
	return nil
}
