package sync

import (
	"context"
	"errors"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"provideragent/payment/dao"
	"provideragent/payment/signbus"
	"provideragent/payment/wire"
)

type fakeDriver struct{}

func (fakeDriver) Sign(ctx context.Context, platform string, req signbus.Request) (signbus.Response, error) {
	return signbus.Response{Signature: []byte("sig:" + req.PaymentID), CanonicalBytes: []byte("canon:" + req.PaymentID)}, nil
}

type recordingTransport struct {
	canonicalCalls int
	lastCanonical  wire.PaymentSyncWithBytes
	legacyCalls    int
	canonicalErr   error
}

func (r *recordingTransport) SendCanonical(ctx context.Context, peerID string, msg wire.PaymentSyncWithBytes) error {
	r.canonicalCalls++
	r.lastCanonical = msg
	return r.canonicalErr
}

func (r *recordingTransport) SendLegacy(ctx context.Context, peerID string, msg wire.PaymentSync) error {
	r.legacyCalls++
	return nil
}

func openTestStore(t *testing.T) *dao.Store {
	t.Helper()
	store, err := dao.Open(filepath.Join(t.TempDir(), "payments.sqlite"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestReplicationGathersArtifactsInFixedOrder(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	if err := store.Allocations.Create(ctx, "alloc-1", "owner", "p", "addr", big.NewInt(1000)); err != nil {
		t.Fatalf("Create allocation: %v", err)
	}
	if err := store.Payments.CreateNew(ctx, dao.NewPaymentParams{
		PaymentID: "pay-1", Payer: "me", Payee: "peer-1", Platform: "p",
		Amount: big.NewInt(10), AllocationID: "alloc-1",
	}); err != nil {
		t.Fatalf("CreateNew payment: %v", err)
	}
	if err := store.Invoices.Create(ctx, dao.Invoice{ID: "inv-1", Issuer: "peer-1", Recipient: "peer-1", Amount: big.NewInt(5), State: dao.StateAccepted}); err != nil {
		t.Fatalf("Create invoice: %v", err)
	}

	bus := signbus.New(fakeDriver{})
	defer bus.Close()
	transport := &recordingTransport{}
	engine := New(store, bus, transport, nil)

	if err := store.SyncNotifs.Touch(ctx, "peer-1", time.Now().UTC().Add(-time.Hour)); err != nil {
		t.Fatalf("Touch: %v", err)
	}

	if _, err := engine.runIteration(ctx); err != nil {
		t.Fatalf("runIteration: %v", err)
	}

	if transport.canonicalCalls != 1 {
		t.Fatalf("expected exactly one canonical send, got %d", transport.canonicalCalls)
	}
	if len(transport.lastCanonical.Payments) != 1 || transport.lastCanonical.Payments[0].PaymentID != "pay-1" {
		t.Fatalf("expected payment pay-1 in sync message, got %+v", transport.lastCanonical.Payments)
	}

	remaining, err := store.SyncNotifs.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("expected notif dropped after successful replication, got %+v", remaining)
	}
}

func TestCanonicalBadRequestFallsBackToLegacy(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	if err := store.Allocations.Create(ctx, "alloc-1", "owner", "p", "addr", big.NewInt(100)); err != nil {
		t.Fatalf("Create allocation: %v", err)
	}
	if err := store.Payments.CreateNew(ctx, dao.NewPaymentParams{
		PaymentID: "pay-1", Payer: "me", Payee: "peer-1", Platform: "p",
		Amount: big.NewInt(10), AllocationID: "alloc-1",
	}); err != nil {
		t.Fatalf("CreateNew: %v", err)
	}

	bus := signbus.New(fakeDriver{})
	defer bus.Close()
	transport := &recordingTransport{canonicalErr: signbus.ErrBadRequest}
	engine := New(store, bus, transport, nil)

	if err := store.SyncNotifs.Touch(ctx, "peer-1", time.Now().UTC().Add(-time.Hour)); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	if _, err := engine.runIteration(ctx); err != nil {
		t.Fatalf("runIteration: %v", err)
	}

	if transport.canonicalCalls != 1 || transport.legacyCalls != 1 {
		t.Fatalf("expected one canonical attempt and one legacy fallback, got canonical=%d legacy=%d", transport.canonicalCalls, transport.legacyCalls)
	}

	unsent, err := store.Payments.ListUnsent(ctx, "peer-1")
	if err != nil {
		t.Fatalf("ListUnsent: %v", err)
	}
	if len(unsent) != 0 {
		t.Fatalf("expected payment marked sent after legacy fallback delivered it")
	}
}

// Scenario 5: backoff schedule DelayZero=30s, Ratio=6.
func TestNextDelaySchedule(t *testing.T) {
	cases := []struct {
		retries int
		want    time.Duration
	}{
		{0, 30 * time.Second},
		{1, 180 * time.Second},
		{2, 1080 * time.Second},
	}
	for _, c := range cases {
		got := nextDelay(c.retries)
		if got != c.want {
			t.Fatalf("nextDelay(%d) = %v, want %v", c.retries, got, c.want)
		}
	}
}

func TestNotifDroppedAfterMaxRetries(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	bus := signbus.New(fakeDriver{})
	defer bus.Close()
	engine := New(store, bus, &recordingTransport{}, nil)

	past := time.Now().UTC().Add(-nextDelay(MaxRetries) - time.Hour)
	if err := store.SyncNotifs.Touch(ctx, "peer-1", past); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	for i := 0; i < MaxRetries; i++ {
		if err := store.SyncNotifs.IncrementRetry(ctx, "peer-1", past); err != nil {
			t.Fatalf("IncrementRetry: %v", err)
		}
	}

	if _, err := engine.runIteration(ctx); err != nil {
		t.Fatalf("runIteration: %v", err)
	}

	notifs, err := store.SyncNotifs.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(notifs) != 0 {
		t.Fatalf("expected notif dropped after MaxRetries, got %+v", notifs)
	}
}

func TestWakeIsNonBlockingAndCoalesces(t *testing.T) {
	store := openTestStore(t)
	bus := signbus.New(fakeDriver{})
	defer bus.Close()
	engine := New(store, bus, &recordingTransport{}, nil)

	engine.Wake()
	engine.Wake()
	engine.Wake()

	select {
	case <-engine.wake:
	default:
		t.Fatalf("expected a pending wake signal")
	}
	select {
	case <-engine.wake:
		t.Fatalf("expected wake signals to coalesce to one pending signal")
	default:
	}
}

func TestReplicationFailurePropagatesAndIncrementsRetry(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	if err := store.Allocations.Create(ctx, "alloc-1", "owner", "p", "addr", big.NewInt(100)); err != nil {
		t.Fatalf("Create allocation: %v", err)
	}
	if err := store.Payments.CreateNew(ctx, dao.NewPaymentParams{
		PaymentID: "pay-1", Payer: "me", Payee: "peer-1", Platform: "p",
		Amount: big.NewInt(10), AllocationID: "alloc-1",
	}); err != nil {
		t.Fatalf("CreateNew: %v", err)
	}

	bus := signbus.New(fakeDriver{})
	defer bus.Close()
	transport := &recordingTransport{canonicalErr: errors.New("peer unreachable")}
	engine := New(store, bus, transport, nil)

	if err := store.SyncNotifs.Touch(ctx, "peer-1", time.Now().UTC().Add(-time.Hour)); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	if _, err := engine.runIteration(ctx); err == nil {
		t.Fatalf("expected runIteration to surface the transport error")
	}

	notifs, err := store.SyncNotifs.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(notifs) != 1 || notifs[0].Retries != 1 {
		t.Fatalf("expected retries incremented to 1, got %+v", notifs)
	}
}
