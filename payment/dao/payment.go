package dao

import (
	"context"
	"database/sql"
	"math/big"
)

// PaymentDAO persists locally-originated Payment rows.
type PaymentDAO struct {
	db *sql.DB
}

// NewPaymentParams is the input to CreateNew.
type NewPaymentParams struct {
	PaymentID    string
	Payer        string
	Payee        string
	Platform     string
	Amount       *big.Int
	Details      []byte
	AllocationID string
	ActivityIDs  []string
	AgreementIDs []string
}

// CreateNew inserts the payment row plus its per-activity and
// per-agreement child rows, and spends the allocation, all in one
// transaction. A failure at any step rolls back the whole insert —
// partial insertion is impossible.
func (p *PaymentDAO) CreateNew(ctx context.Context, params NewPaymentParams) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO payments (payment_id, payer, payee, platform, amount, details, sent, allocation_id)
         VALUES (?, ?, ?, ?, ?, ?, 0, ?)`,
		params.PaymentID, params.Payer, params.Payee, params.Platform, params.Amount.String(), params.Details, params.AllocationID,
	); err != nil {
		return err
	}

	for _, activity := range params.ActivityIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO payment_activities (payment_id, activity_id) VALUES (?, ?)`,
			params.PaymentID, activity,
		); err != nil {
			return err
		}
	}
	for _, agreement := range params.AgreementIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO payment_agreements (payment_id, agreement_id) VALUES (?, ?)`,
			params.PaymentID, agreement,
		); err != nil {
			return err
		}
	}

	alloc := &AllocationDAO{}
	if err := alloc.spendTx(ctx, tx, params.AllocationID, params.Amount); err != nil {
		return err
	}

	return tx.Commit()
}

// MarkSent marks a payment as sent. Idempotent: replaying on an
// already-sent payment is a no-op.
func (p *PaymentDAO) MarkSent(ctx context.Context, paymentID string) error {
	_, err := p.db.ExecContext(ctx, `UPDATE payments SET sent = 1 WHERE payment_id = ? AND sent = 0`, paymentID)
	return err
}

// ListUnsent returns payments with Sent=false originated for peerID
// (where the provider is either payer or payee, matching the spec's
// "gather unsent payments ... for that peer").
func (p *PaymentDAO) ListUnsent(ctx context.Context, peerID string) ([]Payment, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT payment_id, payer, payee, platform, amount, details, allocation_id
         FROM payments WHERE sent = 0 AND (payer = ? OR payee = ?)`, peerID, peerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Payment
	for rows.Next() {
		var pay Payment
		var amountStr string
		if err := rows.Scan(&pay.PaymentID, &pay.Payer, &pay.Payee, &pay.Platform, &amountStr, &pay.Details, &pay.AllocationID); err != nil {
			return nil, err
		}
		pay.Amount, _ = new(big.Int).SetString(amountStr, 10)
		out = append(out, pay)
	}
	return out, rows.Err()
}
