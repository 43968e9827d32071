// Package ledger implements the tamper-evident audit log. Every automated
// decision made by the pipeline is recorded as an immutable Event linked into
// a per-stream hash chain: each entry embeds the digest of its predecessor,
// so a retroactive edit breaks every link after it.
//
// Streams are keyed by trace ID. Appends are serialized per stream and backed
// by an optimistic position check in the store, so chain integrity holds even
// when two writers race.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"sentra/pkg/sentinel"
)

// appendRetries bounds the optimistic-conflict retry loop. Conflicts only
// happen when another writer commits to the same stream between our head read
// and our insert, so a couple of retries is plenty.
const appendRetries = 3

var tracer = otel.Tracer("sentra/ledger")

// Ledger owns a Store and enforces the chain invariants on every append.
type Ledger struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time

	// onCommit is invoked after a successful append, outside the stream
	// lock. Used to feed the sync relay; must not block.
	onCommit func(Event)

	mu      sync.Mutex
	streams map[string]*sync.Mutex
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the logger used for append diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// WithClock overrides the timestamp source. Tests inject a fixed clock so
// hashes are reproducible.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithCommitHook registers a callback invoked for every committed event.
// The hook runs on the appending goroutine and must return quickly.
func WithCommitHook(hook func(Event)) Option {
	return func(l *Ledger) { l.onCommit = hook }
}

// New creates a Ledger over the given store.
func New(store Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:   store,
		logger:  slog.Default(),
		now:     time.Now,
		streams: make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// streamLock returns the mutex serializing appends for one stream.
func (l *Ledger) streamLock(streamID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.streams[streamID]
	if !ok {
		m = &sync.Mutex{}
		l.streams[streamID] = m
	}
	return m
}

// Append validates the draft, links it to the stream head, and persists it
// durably before returning. A storage failure is fatal to the caller: a
// missing link would corrupt auditability irrecoverably, so nothing partial
// is ever written.
func (l *Ledger) Append(ctx context.Context, draft Draft) (Event, error) {
	if err := validateDraft(draft); err != nil {
		return Event{}, err
	}

	ctx, span := tracer.Start(ctx, "ledger.Append")
	defer span.End()
	span.SetAttributes(
		attribute.String("audit.trace_id", draft.TraceID),
		attribute.String("audit.event_type", draft.EventType),
	)

	event := Event{
		AuditID:             uuid.NewString(),
		TraceID:             draft.TraceID,
		UserID:              draft.UserID,
		SessionID:           draft.SessionID,
		EventType:           draft.EventType,
		Action:              draft.Action,
		ResourceType:        draft.ResourceType,
		ResourceID:          draft.ResourceID,
		Sensitivity:         draft.Sensitivity,
		Method:              draft.Method,
		SanitizationApplied: draft.SanitizationApplied,
		ExternalServiceUsed: false, // invariant, not a default
		ComplianceFlags:     complianceFlags(draft.Sensitivity, draft.EventType),
		InputHash:           draft.InputHash,
		OutputHash:          draft.OutputHash,
		InputLength:         draft.InputLength,
		OutputLength:        draft.OutputLength,
		ProcessingTimeMs:    draft.ProcessingTimeMs,
		ModelUsed:           draft.ModelUsed,
		TokensProcessed:     draft.TokensProcessed,
		MemorySampleMB:      draft.MemorySampleMB,
		Status:              draft.Status,
		ErrorType:           draft.ErrorType,
		ErrorMessage:        draft.ErrorMessage,
		FallbackTriggered:   draft.FallbackTriggered,
		FallbackReason:      draft.FallbackReason,
		Sync:                SyncState{Status: SyncPending},
		Timestamp:           draft.Timestamp,
		ClientPlatform:      draft.ClientPlatform,
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = l.now()
	}
	// TIMESTAMPTZ keeps microseconds. Truncate before hashing so the stored
	// timestamp recomputes to the same digest after a round trip.
	event.Timestamp = event.Timestamp.Truncate(time.Microsecond)

	lock := l.streamLock(draft.TraceID)
	lock.Lock()
	defer lock.Unlock()

	var lastErr error
	for attempt := 0; attempt < appendRetries; attempt++ {
		head, err := l.store.Head(ctx, draft.TraceID)
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			event.PreviousHash = ""
			event.ChainPosition = 1
		case err != nil:
			return Event{}, fmt.Errorf("read stream head: %w", err)
		default:
			event.PreviousHash = head.EventHash
			event.ChainPosition = head.ChainPosition + 1
		}

		event.EventHash = computeEventHash(event.PreviousHash, event)

		err = l.store.Append(ctx, event)
		if err == nil {
			if l.onCommit != nil {
				l.onCommit(event)
			}
			return event, nil
		}
		if !errors.Is(err, sentinel.ErrConflict) {
			return Event{}, fmt.Errorf("append audit event: %w", err)
		}
		// Another writer took our position; re-read the head and relink.
		lastErr = err
		l.logger.Debug("audit append conflict, retrying",
			"trace_id", draft.TraceID,
			"position", event.ChainPosition,
			"attempt", attempt+1,
		)
	}
	return Event{}, fmt.Errorf("append audit event after %d attempts: %w", appendRetries, lastErr)
}

// ValidationReport is the result of walking one stream's chain.
type ValidationReport struct {
	StreamID string
	IsValid  bool
	Length   int
	Breaks   []ChainBreak
}

// Err converts an invalid report into a ChainIntegrityError, for callers
// that propagate validation failures as errors. Nil when the chain is intact.
func (r ValidationReport) Err() error {
	if r.IsValid {
		return nil
	}
	return &ChainIntegrityError{StreamID: r.StreamID, Breaks: r.Breaks}
}

// Errors renders the breaks as human-readable strings.
func (r ValidationReport) Errors() []string {
	out := make([]string, len(r.Breaks))
	for i, b := range r.Breaks {
		out[i] = b.String()
	}
	return out
}

// ValidateChain walks a stream in position order and checks every link:
// position continuity, predecessor linkage, and hash recomputation. All
// breaks are reported, not just the first, so an operator can see the full
// extent of the damage. Nothing is ever auto-repaired.
func (l *Ledger) ValidateChain(ctx context.Context, streamID string) (ValidationReport, error) {
	events, err := l.store.ListStream(ctx, streamID)
	if err != nil {
		return ValidationReport{}, fmt.Errorf("list stream %s: %w", streamID, err)
	}

	report := ValidationReport{StreamID: streamID, Length: len(events)}
	for i, e := range events {
		want := int64(i + 1)
		if e.ChainPosition != want {
			report.Breaks = append(report.Breaks, ChainBreak{
				Position: e.ChainPosition,
				Reason:   fmt.Sprintf("chain position %d, expected %d", e.ChainPosition, want),
			})
		}
		if i == 0 {
			if e.PreviousHash != "" {
				report.Breaks = append(report.Breaks, ChainBreak{
					Position: e.ChainPosition,
					Reason:   "first event carries a previous hash",
				})
			}
		} else if e.PreviousHash != events[i-1].EventHash {
			report.Breaks = append(report.Breaks, ChainBreak{
				Position: e.ChainPosition,
				Reason:   "previous hash does not match predecessor",
			})
		}
		if !verifyEventHash(e) {
			report.Breaks = append(report.Breaks, ChainBreak{
				Position: e.ChainPosition,
				Reason:   "stored hash does not match recomputed hash",
			})
		}
	}
	report.IsValid = len(report.Breaks) == 0
	return report, nil
}

// List exposes filtered reads for the audit API.
func (l *Ledger) List(ctx context.Context, filter Filter) ([]Event, error) {
	return l.store.List(ctx, filter)
}

// Streams returns the distinct stream IDs, for cross-stream validation tooling.
func (l *Ledger) Streams(ctx context.Context) ([]string, error) {
	return l.store.Streams(ctx)
}

func validateDraft(d Draft) error {
	switch {
	case d.TraceID == "":
		return &ValidationError{Field: "traceId", Reason: "is required"}
	case d.UserID == "":
		return &ValidationError{Field: "userId", Reason: "is required"}
	case d.EventType == "":
		return &ValidationError{Field: "eventType", Reason: "is required"}
	case d.Action == "":
		return &ValidationError{Field: "action", Reason: "is required"}
	case !d.Sensitivity.Valid():
		return &ValidationError{Field: "sensitivityLevel", Reason: fmt.Sprintf("%q is not a known level", d.Sensitivity)}
	case !d.Method.Valid():
		return &ValidationError{Field: "processingMethod", Reason: fmt.Sprintf("%q is not a known method", d.Method)}
	case !d.Status.Valid():
		return &ValidationError{Field: "status", Reason: fmt.Sprintf("%q is not a known status", d.Status)}
	}
	return nil
}
