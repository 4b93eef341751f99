// Package signbus is the RPC client to the on-chain payment drivers
// (treated as an external signing/settlement service reachable over a
// message bus, per spec.md's explicit exclusion of driver internals).
// The channel between this client and the driver goroutine is a
// bounded buffer of depth 16; senders block when full (SPEC_FULL.md §5),
// grounded on the teacher's namespace-dispatch RPC shape
// (core/query_router.go) and its bounded-queue idiom
// (services/escrow-gateway/webhook_queue.go).
package signbus

import (
	"context"
	"errors"
)

// Kind distinguishes the legacy and canonical-form signing requests.
type Kind int

const (
	SignPayment Kind = iota
	SignPaymentCanonicalized
)

// DefaultQueueDepth is the bounded buffer depth between this client and
// the driver goroutine.
const DefaultQueueDepth = 16

// Request is one signing request sent to a driver.
type Request struct {
	Kind      Kind
	PaymentID string
	Payload   []byte
}

// Response is the driver's reply.
type Response struct {
	Signature      []byte
	CanonicalBytes []byte
}

// ErrBadRequest classifies a driver response that the sync engine should
// treat as "unsupported request shape" rather than "retry later" — this
// is what triggers the canonical-to-legacy fallback in payment/sync.
var ErrBadRequest = errors.New("signbus: driver returned bad request")

// Driver is implemented by the external payment-driver process reached
// over the bus. Its internals (geth RPC, gas pricing, contract
// addresses) are out of scope for this module per spec.md §1.
type Driver interface {
	Sign(ctx context.Context, platform string, req Request) (Response, error)
}

type job struct {
	platform string
	req      Request
	reply    chan result
}

type result struct {
	resp Response
	err  error
}

// Bus dispatches signing requests onto a bounded channel to a single
// driver goroutine, modeling the outer RPC call as a depth-16 mailbox.
type Bus struct {
	driver Driver
	queue  chan job
	done   chan struct{}
}

// New constructs a Bus and starts its dispatch goroutine.
func New(driver Driver) *Bus {
	b := &Bus{driver: driver, queue: make(chan job, DefaultQueueDepth), done: make(chan struct{})}
	go b.run()
	return b
}

func (b *Bus) run() {
	for {
		select {
		case j, ok := <-b.queue:
			if !ok {
				return
			}
			resp, err := b.driver.Sign(context.Background(), j.platform, j.req)
			j.reply <- result{resp: resp, err: err}
		case <-b.done:
			for {
				select {
				case j := <-b.queue:
					resp, err := b.driver.Sign(context.Background(), j.platform, j.req)
					j.reply <- result{resp: resp, err: err}
				default:
					return
				}
			}
		}
	}
}

// Close stops the dispatch goroutine. In-flight Send calls whose job
// was already accepted onto the queue still complete.
func (b *Bus) Close() {
	close(b.done)
}

// Send submits req for platform and blocks until the driver replies or
// ctx is done. Timeout is inherited entirely from ctx — no inner
// timeout is applied beyond what the caller supplies, per SPEC_FULL.md §4.H.
func (b *Bus) Send(ctx context.Context, platform string, req Request) (Response, error) {
	reply := make(chan result, 1)
	select {
	case b.queue <- job{platform: platform, req: req, reply: reply}:
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
	select {
	case r := <-reply:
		return r.resp, r.err
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}

// DriverBusID derives the bus address for a platform prefix, mirroring
// spec.md's `driver_bus_id(platform_prefix)` naming.
func DriverBusID(platformPrefix string) string {
	return "driver/" + platformPrefix
}
