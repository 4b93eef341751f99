package sync

import (
	"context"

	"provideragent/payment/dao"
	"provideragent/payment/signbus"
	"provideragent/payment/wire"
)

// signAll requests a legacy and a canonical signature for every
// artifact gathered for a peer, returning both fully-assembled wire
// messages. The legacy message is always built so it's ready as a
// fallback if the peer rejects the canonical one.
func (e *Engine) signAll(ctx context.Context, payments []dao.Payment, invoiceAccepts, invoiceRejects []dao.Invoice, debitAccepts []dao.DebitNote) (wire.PaymentSyncWithBytes, wire.PaymentSync, error) {
	var canonical wire.PaymentSyncWithBytes
	var legacy wire.PaymentSync

	for _, p := range payments {
		legacyResp, err := e.bus.Send(ctx, p.Platform, signbus.Request{
			Kind:      signbus.SignPayment,
			PaymentID: p.PaymentID,
			Payload:   p.Details,
		})
		if err != nil {
			return canonical, legacy, err
		}
		legacy.Payments = append(legacy.Payments, wire.SignedPayment{
			PaymentID: p.PaymentID,
			Payer:     p.Payer,
			Payee:     p.Payee,
			Platform:  p.Platform,
			Amount:    p.Amount.String(),
			Details:   p.Details,
			Signature: legacyResp.Signature,
		})

		canonicalResp, err := e.bus.Send(ctx, p.Platform, signbus.Request{
			Kind:      signbus.SignPaymentCanonicalized,
			PaymentID: p.PaymentID,
			Payload:   p.Details,
		})
		if err != nil {
			return canonical, legacy, err
		}
		canonical.Payments = append(canonical.Payments, wire.SignedPaymentCanonical{
			PaymentID:      p.PaymentID,
			Payer:          p.Payer,
			Payee:          p.Payee,
			Platform:       p.Platform,
			Amount:         p.Amount.String(),
			Details:        p.Details,
			CanonicalBytes: canonicalResp.CanonicalBytes,
			Signature:      canonicalResp.Signature,
		})
	}

	for _, inv := range invoiceAccepts {
		ref, err := e.signArtifact(ctx, inv.ID, inv.Issuer, inv.Recipient)
		if err != nil {
			return canonical, legacy, err
		}
		legacy.InvoiceAccepts = append(legacy.InvoiceAccepts, ref)
		canonical.InvoiceAccepts = append(canonical.InvoiceAccepts, ref)
	}
	for _, inv := range invoiceRejects {
		ref, err := e.signArtifact(ctx, inv.ID, inv.Issuer, inv.Recipient)
		if err != nil {
			return canonical, legacy, err
		}
		legacy.InvoiceRejects = append(legacy.InvoiceRejects, ref)
		canonical.InvoiceRejects = append(canonical.InvoiceRejects, ref)
	}
	for _, note := range debitAccepts {
		ref, err := e.signArtifact(ctx, note.ID, note.Issuer, note.Recipient)
		if err != nil {
			return canonical, legacy, err
		}
		legacy.DebitNoteAccepts = append(legacy.DebitNoteAccepts, ref)
		canonical.DebitNoteAccepts = append(canonical.DebitNoteAccepts, ref)
	}

	return canonical, legacy, nil
}

// signArtifact requests a signature over a bare invoice/debit-note
// reference. Artifact signatures have no legacy/canonical split — only
// payments carry two wire encodings.
func (e *Engine) signArtifact(ctx context.Context, id, issuer, recipient string) (wire.ArtifactRef, error) {
	resp, err := e.bus.Send(ctx, issuer, signbus.Request{
		Kind:      signbus.SignPayment,
		PaymentID: id,
		Payload:   []byte(id),
	})
	if err != nil {
		return wire.ArtifactRef{}, err
	}
	return wire.ArtifactRef{
		ID:        id,
		Issuer:    issuer,
		Recipient: recipient,
		Signature: resp.Signature,
	}, nil
}
