package dao

import (
	"context"
	"database/sql"
	"errors"
	"math/big"
)

// AllocationDAO persists Allocation rows and enforces the
// spent+remaining==total invariant on every mutation.
type AllocationDAO struct {
	db *sql.DB
}

// Create inserts a new allocation with Spent=0, Remaining=Total.
func (a *AllocationDAO) Create(ctx context.Context, id, owner, platform, address string, total *big.Int) error {
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO allocations (id, owner, platform, address, total, spent, remaining, released)
         VALUES (?, ?, ?, ?, ?, '0', ?, 0)`,
		id, owner, platform, address, total.String(), total.String(),
	)
	return err
}

// Get returns the allocation by id. A released allocation returns
// ErrAllocationGone.
func (a *AllocationDAO) Get(ctx context.Context, id string) (*Allocation, error) {
	row := a.db.QueryRowContext(ctx,
		`SELECT id, owner, platform, address, total, spent, remaining, released FROM allocations WHERE id = ?`, id)
	alloc, err := scanAllocation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if alloc.Released {
		return nil, ErrAllocationGone
	}
	return alloc, nil
}

// Spend atomically reduces Remaining and increases Spent by delta.
// Fails with ErrInsufficientAllocation if delta exceeds Remaining,
// leaving the row untouched. The read-then-write runs inside a single
// transaction so a concurrent Spend on the same allocation can't read
// a remaining balance that's gone stale by the time it writes.
func (a *AllocationDAO) Spend(ctx context.Context, id string, delta *big.Int) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := a.spendTx(ctx, tx, id, delta); err != nil {
		return err
	}
	return tx.Commit()
}

// spendTx performs the same update against an externally-managed
// transaction, used by PaymentDAO.CreateNew to keep the payment insert
// and the allocation spend in one atomic unit.
func (a *AllocationDAO) spendTx(ctx context.Context, execer interface {
	QueryRowContext(context.Context, string, ...any) *sql.Row
	ExecContext(context.Context, string, ...any) (sql.Result, error)
}, id string, delta *big.Int) error {
	row := execer.QueryRowContext(ctx,
		`SELECT total, spent, remaining, released FROM allocations WHERE id = ?`, id)
	var totalStr, spentStr, remainingStr string
	var released bool
	if err := row.Scan(&totalStr, &spentStr, &remainingStr, &released); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if released {
		return ErrAllocationReleased
	}
	remaining, ok := new(big.Int).SetString(remainingStr, 10)
	if !ok {
		return errors.New("dao: corrupt remaining amount")
	}
	if delta.Cmp(remaining) > 0 {
		return ErrInsufficientAllocation
	}
	spent, _ := new(big.Int).SetString(spentStr, 10)
	newSpent := new(big.Int).Add(spent, delta)
	newRemaining := new(big.Int).Sub(remaining, delta)

	_, err := execer.ExecContext(ctx,
		`UPDATE allocations SET spent = ?, remaining = ? WHERE id = ?`,
		newSpent.String(), newRemaining.String(), id)
	return err
}

// Release marks the allocation terminal; Released never reverts.
func (a *AllocationDAO) Release(ctx context.Context, id string) error {
	_, err := a.db.ExecContext(ctx, `UPDATE allocations SET released = 1 WHERE id = ?`, id)
	return err
}

func scanAllocation(row *sql.Row) (*Allocation, error) {
	var a Allocation
	var totalStr, spentStr, remainingStr string
	if err := row.Scan(&a.ID, &a.Owner, &a.Platform, &a.Address, &totalStr, &spentStr, &remainingStr, &a.Released); err != nil {
		return nil, err
	}
	a.Total, _ = new(big.Int).SetString(totalStr, 10)
	a.Spent, _ = new(big.Int).SetString(spentStr, 10)
	a.Remaining, _ = new(big.Int).SetString(remainingStr, 10)
	return &a, nil
}
