// Package sync is the payment synchronization engine: a long-lived
// goroutine that walks pending sync-notifs on a backoff schedule,
// gathers unsent payment artifacts for each peer, requests signatures
// over the signing bus, and replicates them to the peer, grounded on
// the teacher's retrying webhook delivery loop
// (services/escrow-gateway/webhook_queue.go) and payout processor
// (services/payoutd/processor.go).
package sync

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"provideragent/observability"
	"provideragent/payment/dao"
	"provideragent/payment/signbus"
	"provideragent/payment/wire"
)

// Backoff schedule constants.
const (
	DelayZero          = 30 * time.Second
	Ratio              = 6
	MaxRetries         = 7
	RemoteCallTimeout  = 30 * time.Second
	SyncRequestPacing  = 30 * time.Second
	fallbackWakeAfter  = time.Hour
)

// Transport sends a fully-built sync payload to a peer and reports,
// through its error, whether the peer accepted the message as a whole.
// A BadRequest-classified
// error on SendCanonical triggers a fallback to SendLegacy for the same
// notif within the same iteration.
type Transport interface {
	SendCanonical(ctx context.Context, peerID string, msg wire.PaymentSyncWithBytes) error
	SendLegacy(ctx context.Context, peerID string, msg wire.PaymentSync) error
}

// Clock is injected so retry-schedule tests don't depend on wall time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Engine drains the sync-notif table on a computed backoff schedule.
type Engine struct {
	store     *dao.Store
	bus       *signbus.Bus
	transport Transport
	logger    *slog.Logger
	clock     Clock
	wake      chan struct{}
}

// New constructs an Engine. logger defaults to slog.Default() if nil.
func New(store *dao.Store, bus *signbus.Bus, transport Transport, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:     store,
		bus:       bus,
		transport: transport,
		logger:    logger,
		clock:     systemClock{},
		wake:      make(chan struct{}, 1),
	}
}

// Wake preempts the current sleep, causing Run to re-scan immediately.
// Non-blocking: a pending wake that hasn't been consumed yet is not
// duplicated.
func (e *Engine) Wake() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// nextDelay computes the backoff delay for a notif with the given retry
// count: DelayZero on the first attempt, scaling by Ratio thereafter,
// capped implicitly by MaxRetries (the caller drops the notif once
// retries reaches MaxRetries rather than retrying further).
func nextDelay(retries int) time.Duration {
	d := DelayZero
	for i := 0; i < retries; i++ {
		d *= Ratio
	}
	return d
}

// Run walks the sync-notif table until ctx is canceled. Each iteration:
// list due notifs, replicate each, sleep until the next notif's
// deadline or a Wake(), whichever comes first.
func (e *Engine) Run(ctx context.Context) error {
	for {
		sleep, err := e.runIteration(ctx)
		if err != nil {
			e.logger.Error("sync iteration failed", "error", err)
		}
		if sleep <= 0 {
			sleep = SyncRequestPacing
		}
		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-e.wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// runIteration processes every currently-due notif once and returns how
// long to sleep before the next iteration: the time until the soonest
// future deadline among remaining notifs, or fallbackWakeAfter if none
// remain.
func (e *Engine) runIteration(ctx context.Context) (time.Duration, error) {
	started := time.Now()
	metrics := observability.PaymentSync()
	defer func() { metrics.ObserveIteration(time.Since(started)) }()

	notifs, err := e.store.SyncNotifs.List(ctx)
	if err != nil {
		return fallbackWakeAfter, err
	}
	metrics.SetPendingNotifs(len(notifs))

	now := e.clock.Now()
	var nextWake = now.Add(fallbackWakeAfter)
	var firstErr error

	for _, notif := range notifs {
		due := notif.LastPing.Add(nextDelay(notif.Retries))
		if due.After(now) {
			if due.Before(nextWake) {
				nextWake = due
			}
			continue
		}

		if notif.Retries >= MaxRetries {
			e.logger.Warn("dropping sync notif after max retries", "peer", notif.PeerID, "retries", notif.Retries)
			if err := e.store.SyncNotifs.Drop(ctx, notif.PeerID); err != nil && firstErr == nil {
				firstErr = err
			}
			continue
		}

		if err := e.replicateTo(ctx, notif.PeerID); err != nil {
			e.logger.Warn("sync replication failed, backing off", "peer", notif.PeerID, "error", err)
			metrics.RecordAttempt("failed")
			metrics.RecordRetry(notif.PeerID)
			if rerr := e.store.SyncNotifs.IncrementRetry(ctx, notif.PeerID, now); rerr != nil && firstErr == nil {
				firstErr = rerr
			}
			retryDue := now.Add(nextDelay(notif.Retries + 1))
			if retryDue.Before(nextWake) {
				nextWake = retryDue
			}
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		metrics.RecordAttempt("delivered")

		if err := e.store.SyncNotifs.Drop(ctx, notif.PeerID); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return nextWake.Sub(now), firstErr
}

// replicateTo gathers every unsent artifact for peerID, in the fixed
// ordering payments, invoice-accepts, invoice-rejects,
// debit-note-accepts, requests signatures, and delivers them. It sends
// canonical-form first and falls back to legacy on a BadRequest
// classification. Only artifacts actually delivered are marked sent.
func (e *Engine) replicateTo(ctx context.Context, peerID string) error {
	ctx, cancel := context.WithTimeout(ctx, RemoteCallTimeout)
	defer cancel()

	sessionID := uuid.New().String()
	logger := e.logger.With("peer", peerID, "sessionId", sessionID)

	payments, err := e.store.Payments.ListUnsent(ctx, peerID)
	if err != nil {
		return err
	}
	invoiceAccepts, err := e.store.Invoices.ListUnsentAccepts(ctx, peerID)
	if err != nil {
		return err
	}
	invoiceRejects, err := e.store.Invoices.ListUnsentRejects(ctx, peerID)
	if err != nil {
		return err
	}
	debitAccepts, err := e.store.DebitNotes.ListUnsentAccepts(ctx, peerID)
	if err != nil {
		return err
	}

	if len(payments) == 0 && len(invoiceAccepts) == 0 && len(invoiceRejects) == 0 && len(debitAccepts) == 0 {
		return nil
	}

	canonical, legacy, err := e.signAll(ctx, payments, invoiceAccepts, invoiceRejects, debitAccepts)
	if err != nil {
		return err
	}
	canonical.SessionID = sessionID
	legacy.SessionID = sessionID

	sendErr := e.transport.SendCanonical(ctx, peerID, canonical)
	if sendErr != nil {
		if !errors.Is(sendErr, signbus.ErrBadRequest) {
			return sendErr
		}
		logger.Info("peer rejected canonical sync message, falling back to legacy")
		if err := e.transport.SendLegacy(ctx, peerID, legacy); err != nil {
			return err
		}
	}

	return e.markDelivered(ctx, payments, invoiceAccepts, invoiceRejects, debitAccepts)
}

func (e *Engine) markDelivered(ctx context.Context, payments []dao.Payment, invoiceAccepts, invoiceRejects []dao.Invoice, debitAccepts []dao.DebitNote) error {
	for _, p := range payments {
		if err := e.store.Payments.MarkSent(ctx, p.PaymentID); err != nil {
			return err
		}
	}
	for _, inv := range invoiceAccepts {
		if err := e.store.Invoices.MarkAcceptSent(ctx, inv.ID, inv.Issuer); err != nil {
			return err
		}
	}
	for _, inv := range invoiceRejects {
		if err := e.store.Invoices.MarkRejectSent(ctx, inv.ID, inv.Issuer); err != nil {
			return err
		}
	}
	for _, note := range debitAccepts {
		if err := e.store.DebitNotes.MarkAcceptSent(ctx, note.ID, note.Issuer); err != nil {
			return err
		}
	}
	return nil
}
