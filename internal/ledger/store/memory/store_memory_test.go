package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentra/internal/ledger"
	"sentra/internal/ledger/store/memory"
	"sentra/pkg/sentinel"
)

func storedEvent(auditID, traceID string, position int64) ledger.Event {
	return ledger.Event{
		AuditID:       auditID,
		TraceID:       traceID,
		UserID:        "user-1",
		EventType:     ledger.EventModelDecision,
		Action:        "decision allow",
		Sensitivity:   ledger.SensitivityPublic,
		Method:        ledger.MethodPatternFallback,
		Status:        ledger.StatusSuccess,
		ChainPosition: position,
		EventHash:     "sha256:test",
		Sync:          ledger.SyncState{Status: ledger.SyncPending},
		Timestamp:     time.Now(),
	}
}

func TestAppendConflictOnPosition(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	require.NoError(t, store.Append(ctx, storedEvent("a", "t1", 1)))
	err := store.Append(ctx, storedEvent("b", "t1", 1))
	assert.ErrorIs(t, err, sentinel.ErrConflict)

	// Same position on another stream is fine.
	assert.NoError(t, store.Append(ctx, storedEvent("c", "t2", 1)))
}

func TestHeadEmptyStream(t *testing.T) {
	_, err := memory.New().Head(context.Background(), "missing")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestUpdateSyncStateVisibleEverywhere(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.Append(ctx, storedEvent("a", "t1", 1)))

	now := time.Now()
	err := store.UpdateSyncState(ctx, "a", ledger.SyncState{
		Status:       ledger.SyncSynced,
		Attempts:     2,
		RemoteID:     "remote-1",
		LastSyncedAt: &now,
	})
	require.NoError(t, err)

	byID, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, ledger.SyncSynced, byID.Sync.Status)

	// The stream view must see the same state as the ID view.
	stream, err := store.ListStream(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, stream, 1)
	assert.Equal(t, "remote-1", stream[0].Sync.RemoteID)
}

func TestListFilters(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	e1 := storedEvent("a", "t1", 1)
	e2 := storedEvent("b", "t1", 2)
	e2.UserID = "user-2"
	e2.Status = ledger.StatusBlocked
	e3 := storedEvent("c", "t2", 1)
	e3.EventType = ledger.EventEmergencyBlock
	for _, e := range []ledger.Event{e1, e2, e3} {
		require.NoError(t, store.Append(ctx, e))
	}

	all, err := store.List(ctx, ledger.Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
	// Newest first.
	assert.Equal(t, "c", all[0].AuditID)

	byUser, err := store.List(ctx, ledger.Filter{UserID: "user-2"})
	require.NoError(t, err)
	require.Len(t, byUser, 1)
	assert.Equal(t, "b", byUser[0].AuditID)

	byType, err := store.List(ctx, ledger.Filter{EventType: ledger.EventEmergencyBlock})
	require.NoError(t, err)
	assert.Len(t, byType, 1)

	byStatus, err := store.List(ctx, ledger.Filter{Status: ledger.StatusBlocked})
	require.NoError(t, err)
	assert.Len(t, byStatus, 1)

	capped, err := store.List(ctx, ledger.Filter{Take: 2})
	require.NoError(t, err)
	assert.Len(t, capped, 2)
}

func TestListBySync(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	pending := storedEvent("a", "t1", 1)
	failedFresh := storedEvent("b", "t1", 2)
	failedFresh.Sync = ledger.SyncState{Status: ledger.SyncFailed, Attempts: 1}
	failedSpent := storedEvent("c", "t1", 3)
	failedSpent.Sync = ledger.SyncState{Status: ledger.SyncFailed, Attempts: 3}
	for _, e := range []ledger.Event{pending, failedFresh, failedSpent} {
		require.NoError(t, store.Append(ctx, e))
	}

	got, err := store.ListBySync(ctx, ledger.SyncFailed, 3, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].AuditID)

	// Zero maxAttempts means no attempt filter.
	got, err = store.ListBySync(ctx, ledger.SyncFailed, 0, 0)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestStreams(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.Append(ctx, storedEvent("a", "t2", 1)))
	require.NoError(t, store.Append(ctx, storedEvent("b", "t1", 1)))

	ids, err := store.Streams(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t2"}, ids)
}
