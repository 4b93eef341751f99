package dao

import (
	"context"
	"database/sql"
	"math/big"
)

// DebitNoteDAO persists DebitNote rows: interim incremental bills.
type DebitNoteDAO struct {
	db *sql.DB
}

func (d *DebitNoteDAO) Create(ctx context.Context, note DebitNote) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO debit_notes (id, issuer, recipient, amount, state, accept_sent, reject_sent)
         VALUES (?, ?, ?, ?, ?, 0, 0)`,
		note.ID, note.Issuer, note.Recipient, note.Amount.String(), note.State,
	)
	return err
}

// MarkAcceptSent is an idempotent terminal transition.
func (d *DebitNoteDAO) MarkAcceptSent(ctx context.Context, id, issuer string) error {
	_, err := d.db.ExecContext(ctx,
		`UPDATE debit_notes SET accept_sent = 1, state = ? WHERE id = ? AND issuer = ? AND accept_sent = 0`,
		string(StateAccepted), id, issuer)
	return err
}

// ListUnsentAccepts returns accepted debit notes not yet marked as
// accept-sent. Per spec.md §5, debit-note rejects are not part of the
// replication ordering (only accepts are synced for debit notes).
func (d *DebitNoteDAO) ListUnsentAccepts(ctx context.Context, issuer string) ([]DebitNote, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, issuer, recipient, amount, state, accept_sent, reject_sent FROM debit_notes
         WHERE issuer = ? AND state = ? AND accept_sent = 0`, issuer, string(StateAccepted))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DebitNote
	for rows.Next() {
		var note DebitNote
		var amountStr string
		if err := rows.Scan(&note.ID, &note.Issuer, &note.Recipient, &amountStr, &note.State, &note.AcceptSent, &note.RejectSent); err != nil {
			return nil, err
		}
		note.Amount, _ = new(big.Int).SetString(amountStr, 10)
		out = append(out, note)
	}
	return out, rows.Err()
}
