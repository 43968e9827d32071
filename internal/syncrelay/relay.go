// Package syncrelay replicates committed ledger entries to the remote
// compliance store. Replication is asynchronous and eventually consistent:
// the ledger is local-first, the relay drains it in the background with
// per-event retry and exponential backoff.
//
// Retries are owned by the relay's own workers, never by ambient global
// timers, so shutdown is clean and tests are deterministic.
package syncrelay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"sentra/internal/ledger"
	"sentra/pkg/sentinel"
)

// DefaultMaxAttempts caps sync retries per event. After the cap the event
// stays failed and is surfaced to the operational dashboard.
const DefaultMaxAttempts = 3

// Relay drains pending ledger entries to the compliance store.
type Relay struct {
	store   ledger.Store
	remote  RemoteClient
	breaker *breaker
	metrics *Metrics
	logger  *slog.Logger

	queue       chan string
	concurrency int
	maxAttempts int
	backoffBase time.Duration
	sweepEvery  time.Duration
}

// Option configures a Relay.
type Option func(*Relay)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) { r.logger = logger }
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(r *Relay) { r.metrics = m }
}

// WithBackoffBase overrides the backoff unit (production: one second, so
// delays run 2s, 4s, 8s). Tests shrink it to keep retries fast.
func WithBackoffBase(d time.Duration) Option {
	return func(r *Relay) { r.backoffBase = d }
}

// WithMaxAttempts overrides the retry cap.
func WithMaxAttempts(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

// WithConcurrency bounds the number of in-flight syncs.
func WithConcurrency(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithSweepInterval overrides how often the relay re-scans for pending
// events that missed the queue.
func WithSweepInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.sweepEvery = d
		}
	}
}

// New creates a Relay over the ledger store and remote client.
func New(store ledger.Store, remote RemoteClient, opts ...Option) *Relay {
	r := &Relay{
		store:       store,
		remote:      remote,
		breaker:     newBreaker(5, time.Minute),
		logger:      slog.Default(),
		queue:       make(chan string, 1024),
		concurrency: 4,
		maxAttempts: DefaultMaxAttempts,
		backoffBase: time.Second,
		sweepEvery:  time.Minute,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Enqueue schedules a freshly committed event for replication. Non-blocking:
// when the queue is full the event stays pending and the periodic sweep
// picks it up, so nothing is ever lost.
func (r *Relay) Enqueue(event ledger.Event) {
	select {
	case r.queue <- event.AuditID:
		r.metrics.SetQueueDepth(len(r.queue))
	default:
		r.logger.Warn("sync queue full, deferring to sweep", "audit_id", event.AuditID)
	}
}

// Run drains the queue until the context is cancelled. Syncs for different
// events run concurrently and independently; ordering between them is
// deliberately unspecified.
func (r *Relay) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency + 1)

	g.Go(func() error { return r.sweepLoop(ctx) })

	for {
		select {
		case <-ctx.Done():
			// Let in-flight syncs finish.
			err := g.Wait()
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return ctx.Err()
		case auditID := <-r.queue:
			r.metrics.SetQueueDepth(len(r.queue))
			g.Go(func() error {
				r.syncOne(ctx, auditID)
				return nil
			})
		}
	}
}

// sweepLoop periodically re-enqueues pending events that never made it into
// the queue (full buffer, crash before drain).
func (r *Relay) sweepLoop(ctx context.Context) error {
	ticker := time.NewTicker(r.sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			pending, err := r.store.ListBySync(ctx, ledger.SyncPending, 0, 256)
			if err != nil {
				r.logger.Error("sweep for pending events failed", "error", err)
				continue
			}
			for _, ev := range pending {
				r.Enqueue(ev)
			}
		}
	}
}

// RetryFailedSyncs re-enqueues failed events that still have retry budget.
// Invoked by the periodic job and by the manual operations endpoint.
func (r *Relay) RetryFailedSyncs(ctx context.Context) (int, error) {
	failed, err := r.store.ListBySync(ctx, ledger.SyncFailed, r.maxAttempts, 256)
	if err != nil {
		return 0, fmt.Errorf("list failed syncs: %w", err)
	}
	for _, ev := range failed {
		r.Enqueue(ev)
	}
	return len(failed), nil
}

// VerifyRemote asks the compliance store to validate its copy of a stream.
func (r *Relay) VerifyRemote(ctx context.Context, traceID string) (RemoteChainReport, error) {
	return r.remote.ValidateAuditChain(ctx, traceID)
}

// syncOne pushes a single event to completion: synced, or failed with its
// retry budget exhausted. Each attempt is durably reflected in the event's
// sync state before the next delay starts.
func (r *Relay) syncOne(ctx context.Context, auditID string) {
	event, err := r.store.Get(ctx, auditID)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			r.logger.Error("load event for sync failed", "audit_id", auditID, "error", err)
		}
		return
	}
	if event.Sync.Status == ledger.SyncSynced {
		return
	}

	attempts := event.Sync.Attempts
	for attempts < r.maxAttempts {
		if !r.breaker.allow() {
			// Remote is known bad; wait out the cooldown without
			// consuming this event's budget.
			if !r.sleep(ctx, r.backoffBase) {
				return
			}
			continue
		}

		r.metrics.IncAttempts()
		attempts++

		remoteID, err := r.remote.RegisterEventWithMetadata(ctx,
			event.TraceID, event.UserID, event.EventType, event.Action,
			syncMetadata(event),
		)
		if err == nil {
			r.breaker.recordSuccess()
			now := time.Now()
			state := ledger.SyncState{
				Status:       ledger.SyncSynced,
				Attempts:     attempts,
				RemoteID:     remoteID,
				LastSyncedAt: &now,
			}
			if err := r.store.UpdateSyncState(ctx, auditID, state); err != nil {
				r.logger.Error("record synced state failed", "audit_id", auditID, "error", err)
				return
			}
			r.metrics.IncSynced()
			return
		}

		r.breaker.recordFailure()
		state := ledger.SyncState{
			Status:   ledger.SyncFailed,
			Attempts: attempts,
			Error:    err.Error(),
		}
		if updateErr := r.store.UpdateSyncState(ctx, auditID, state); updateErr != nil {
			r.logger.Error("record failed state failed", "audit_id", auditID, "error", updateErr)
			return
		}

		if attempts >= r.maxAttempts {
			r.metrics.IncPermanentFailures()
			r.logger.Error("event exhausted sync retries, operator attention required",
				"audit_id", auditID,
				"trace_id", event.TraceID,
				"attempts", attempts,
				"error", err,
			)
			return
		}

		// Exponential backoff: base * 2^attempts.
		if !r.sleep(ctx, r.backoffBase<<attempts) {
			return
		}
	}
}

// sleep waits for d or until the context is cancelled. Reports whether the
// wait completed.
func (r *Relay) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// syncMetadata is the chain and compliance context shipped with each event.
// Hashes and lengths only, never content.
func syncMetadata(e ledger.Event) map[string]any {
	return map[string]any{
		"eventHash":        e.EventHash,
		"previousHash":     e.PreviousHash,
		"chainPosition":    e.ChainPosition,
		"sensitivityLevel": string(e.Sensitivity),
		"processingMethod": string(e.Method),
		"status":           string(e.Status),
		"complianceFlags":  e.ComplianceFlags,
		"inputHash":        e.InputHash,
		"outputHash":       e.OutputHash,
		"eventTimestamp":   e.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}
