package dao

import (
	"context"
	"database/sql"
	"math/big"
)

// InvoiceDAO persists Invoice rows: final bills for an agreement.
type InvoiceDAO struct {
	db *sql.DB
}

func (i *InvoiceDAO) Create(ctx context.Context, inv Invoice) error {
	_, err := i.db.ExecContext(ctx,
		`INSERT INTO invoices (id, issuer, recipient, amount, state, accept_sent, reject_sent)
         VALUES (?, ?, ?, ?, ?, 0, 0)`,
		inv.ID, inv.Issuer, inv.Recipient, inv.Amount.String(), inv.State,
	)
	return err
}

// MarkAcceptSent is an idempotent terminal transition: replaying is a
// no-op. issuer is part of the WHERE clause: a row whose stored issuer
// differs is left unchanged, and no error is returned.
func (i *InvoiceDAO) MarkAcceptSent(ctx context.Context, id, issuer string) error {
	_, err := i.db.ExecContext(ctx,
		`UPDATE invoices SET accept_sent = 1, state = ? WHERE id = ? AND issuer = ? AND accept_sent = 0`,
		string(StateAccepted), id, issuer)
	return err
}

// MarkRejectSent is the reject-path counterpart of MarkAcceptSent.
func (i *InvoiceDAO) MarkRejectSent(ctx context.Context, id, issuer string) error {
	_, err := i.db.ExecContext(ctx,
		`UPDATE invoices SET reject_sent = 1, state = ? WHERE id = ? AND issuer = ? AND reject_sent = 0`,
		string(StateRejected), id, issuer)
	return err
}

// ListUnsentAccepts returns accepted invoices not yet marked as
// accept-sent, issued by issuer (the provider acting as issuer for the
// named peer relationship).
func (i *InvoiceDAO) ListUnsentAccepts(ctx context.Context, issuer string) ([]Invoice, error) {
	return i.listUnsent(ctx, issuer, StateAccepted, "accept_sent")
}

// ListUnsentRejects returns rejected invoices not yet marked as
// reject-sent.
func (i *InvoiceDAO) ListUnsentRejects(ctx context.Context, issuer string) ([]Invoice, error) {
	return i.listUnsent(ctx, issuer, StateRejected, "reject_sent")
}

func (i *InvoiceDAO) listUnsent(ctx context.Context, issuer string, state ArtifactState, flagCol string) ([]Invoice, error) {
	query := `SELECT id, issuer, recipient, amount, state, accept_sent, reject_sent FROM invoices WHERE issuer = ? AND state = ? AND ` + flagCol + ` = 0`
	rows, err := i.db.QueryContext(ctx, query, issuer, string(state))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Invoice
	for rows.Next() {
		var inv Invoice
		var amountStr string
		if err := rows.Scan(&inv.ID, &inv.Issuer, &inv.Recipient, &amountStr, &inv.State, &inv.AcceptSent, &inv.RejectSent); err != nil {
			return nil, err
		}
		inv.Amount, _ = new(big.Int).SetString(amountStr, 10)
		out = append(out, inv)
	}
	return out, rows.Err()
}
