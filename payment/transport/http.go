// Package transport is the peer-bus HTTP client the sync engine
// delivers PaymentSync/PaymentSyncWithBytes messages over, grounded on
// the teacher's webhook delivery client (services/escrow-gateway/webhook.go).
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"provideragent/payment/signbus"
	"provideragent/payment/wire"
)

// PeerResolver maps a peerID to the base URL of that peer's sync
// endpoint. Resolution failures are treated the same as a delivery
// failure by the caller (the sync engine retries on its own schedule).
type PeerResolver func(peerID string) (string, error)

// HTTPTransport posts sync payloads to peers over plain HTTP(S),
// classifying a 400 response on the canonical path as signbus.ErrBadRequest
// so the engine falls back to the legacy message.
type HTTPTransport struct {
	client  *http.Client
	resolve PeerResolver
}

// New constructs an HTTPTransport. client defaults to a 10s-timeout
// http.Client when nil, matching the teacher's webhook client timeout.
func New(client *http.Client, resolve PeerResolver) *HTTPTransport {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPTransport{client: client, resolve: resolve}
}

func (t *HTTPTransport) SendCanonical(ctx context.Context, peerID string, msg wire.PaymentSyncWithBytes) error {
	return t.post(ctx, peerID, "/payment-sync/canonical", msg)
}

func (t *HTTPTransport) SendLegacy(ctx context.Context, peerID string, msg wire.PaymentSync) error {
	return t.post(ctx, peerID, "/payment-sync", msg)
}

// RequestReverseSync posts a PaymentSyncRequest asking peerID to replay
// what it has for us, used at startup and after gap detection.
func (t *HTTPTransport) RequestReverseSync(ctx context.Context, peerID, selfID string) error {
	return t.post(ctx, peerID, "/payment-sync/request", wire.PaymentSyncRequest{PeerID: selfID})
}

func (t *HTTPTransport) post(ctx context.Context, peerID, path string, body interface{}) error {
	base, err := t.resolve(peerID)
	if err != nil {
		return fmt.Errorf("transport: resolve peer %s: %w", peerID, err)
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("transport: encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("transport: post %s: %w", base+path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadRequest {
		return signbus.ErrBadRequest
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("transport: peer %s responded %s", peerID, resp.Status)
	}
	return nil
}
