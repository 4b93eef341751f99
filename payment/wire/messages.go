// Package wire defines the peer-bus payment synchronization messages.
package wire

// SignedPayment carries a payment plus its legacy per-field signature.
type SignedPayment struct {
	PaymentID string `json:"paymentId"`
	Payer     string `json:"payer"`
	Payee     string `json:"payee"`
	Platform  string `json:"platform"`
	Amount    string `json:"amount"`
	Details   []byte `json:"details"`
	Signature []byte `json:"signature"`
}

// SignedPaymentCanonical carries a payment with its canonical-form
// signature plus the canonical byte encoding the signature covers, so
// the receiver can verify without reconstructing the encoding itself.
type SignedPaymentCanonical struct {
	PaymentID      string `json:"paymentId"`
	Payer          string `json:"payer"`
	Payee          string `json:"payee"`
	Platform       string `json:"platform"`
	Amount         string `json:"amount"`
	Details        []byte `json:"details"`
	CanonicalBytes []byte `json:"canonicalBytes"`
	Signature      []byte `json:"signature"`
}

// ArtifactRef identifies an invoice/debit-note accept or reject being
// synced, with its signature.
type ArtifactRef struct {
	ID        string `json:"id"`
	Issuer    string `json:"issuer"`
	Recipient string `json:"recipient"`
	Signature []byte `json:"signature"`
}

// PaymentSync is the legacy wire message: per-field signatures.
// SessionID correlates one replication attempt across logs and traces
// on both sides of the wire.
type PaymentSync struct {
	SessionID        string          `json:"sessionId"`
	Payments         []SignedPayment `json:"payments"`
	InvoiceAccepts   []ArtifactRef   `json:"invoiceAccepts"`
	InvoiceRejects   []ArtifactRef   `json:"invoiceRejects"`
	DebitNoteAccepts []ArtifactRef   `json:"debitNoteAccepts"`
}

// PaymentSyncWithBytes is the canonical, preferred wire message. A
// server that does not recognize it returns BadRequest, triggering a
// fallback to PaymentSync.
type PaymentSyncWithBytes struct {
	SessionID        string                   `json:"sessionId"`
	Payments         []SignedPaymentCanonical `json:"payments"`
	InvoiceAccepts   []ArtifactRef            `json:"invoiceAccepts"`
	InvoiceRejects   []ArtifactRef            `json:"invoiceRejects"`
	DebitNoteAccepts []ArtifactRef            `json:"debitNoteAccepts"`
}

// PaymentSyncRequest is the reverse-pull message, sent at startup and
// after gap detection.
type PaymentSyncRequest struct {
	PeerID string `json:"peerId"`
}
