package ledger

import "context"

// Filter narrows read queries over committed events. Zero values mean "any".
type Filter struct {
	UserID    string
	EventType string
	Status    EventStatus
	// Take caps the number of returned events; 0 means no cap.
	Take int
}

// Store is the append-only persistence contract for audit events.
//
// Append must fail with sentinel.ErrConflict when an event with the same
// (TraceID, ChainPosition) already exists; the ledger relies on that for its
// optimistic retry when two writers race on one stream. Committed events are
// immutable except for the sync-state fields, which only UpdateSyncState may
// touch.
type Store interface {
	// Head returns the last committed event of a stream, or
	// sentinel.ErrNotFound when the stream is empty.
	Head(ctx context.Context, streamID string) (Event, error)

	// Append persists a fully-linked event. Durable before it returns.
	Append(ctx context.Context, event Event) error

	// Get returns a single event by audit ID.
	Get(ctx context.Context, auditID string) (Event, error)

	// ListStream returns a stream's events in chain-position order.
	ListStream(ctx context.Context, streamID string) ([]Event, error)

	// List returns events matching the filter, newest first.
	List(ctx context.Context, filter Filter) ([]Event, error)

	// Streams returns the distinct stream IDs present in the store.
	Streams(ctx context.Context) ([]string, error)

	// UpdateSyncState replaces the sync-state fields of one event.
	UpdateSyncState(ctx context.Context, auditID string, state SyncState) error

	// ListBySync returns events in the given sync status with fewer than
	// maxAttempts attempts, oldest first, capped at limit.
	ListBySync(ctx context.Context, status SyncStatus, maxAttempts, limit int) ([]Event, error)
}
