package signbus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// RPCDriver is a JSON-RPC client to an external payment-driver process
// reached at a DriverBusID-addressed endpoint, grounded on the teacher's
// lightweight JSON-RPC client (services/payments-gateway/node_client.go).
// Driver internals (geth RPC, gas pricing, contract addresses) are out
// of scope here; this is only the signing-request transport.
type RPCDriver struct {
	baseURL string
	http    *http.Client
	nextID  atomic.Int64
}

// NewRPCDriver constructs an RPCDriver posting JSON-RPC requests to baseURL.
func NewRPCDriver(baseURL string) *RPCDriver {
	return &RPCDriver{
		baseURL: baseURL,
		http:    &http.Client{Timeout: RemoteCallTimeout},
	}
}

// RemoteCallTimeout bounds a single driver RPC round trip.
const RemoteCallTimeout = 30 * time.Second

func (d *RPCDriver) Sign(ctx context.Context, platform string, req Request) (Response, error) {
	id := d.nextID.Add(1)
	params := map[string]interface{}{
		"platform":  platform,
		"kind":      int(req.Kind),
		"paymentId": req.PaymentID,
		"payload":   req.Payload,
	}
	body, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  "sign_payment",
		"params":  params,
	})
	if err != nil {
		return Response{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL, bytes.NewReader(body))
	if err != nil {
		return Response{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := d.http.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("signbus: driver call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadRequest {
		return Response{}, ErrBadRequest
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Response{}, fmt.Errorf("signbus: driver responded %s", resp.Status)
	}

	var rpcResp struct {
		Result *struct {
			Signature      []byte `json:"signature"`
			CanonicalBytes []byte `json:"canonicalBytes"`
		} `json:"result"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return Response{}, fmt.Errorf("signbus: decode driver response: %w", err)
	}
	if rpcResp.Error != nil {
		return Response{}, fmt.Errorf("signbus: driver error: %s", rpcResp.Error.Message)
	}
	if rpcResp.Result == nil {
		return Response{}, fmt.Errorf("signbus: driver returned empty result")
	}
	return Response{Signature: rpcResp.Result.Signature, CanonicalBytes: rpcResp.Result.CanonicalBytes}, nil
}
