// Package postgres implements the durable ledger store. One row per audit
// event; the unique index on (trace_id, chain_position) is the optimistic
// guard that keeps chains intact when two writers race on a stream.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"sentra/internal/ledger"
	"sentra/pkg/sentinel"
)

// Store persists audit events in the audit_events table.
type Store struct {
	db *sql.DB
}

// New creates a Postgres-backed ledger store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// schema is applied idempotently on startup. Events are append-only: no
// UPDATE path exists for anything but the sync_* columns.
const schema = `
CREATE TABLE IF NOT EXISTS audit_events (
	audit_id             UUID PRIMARY KEY,
	trace_id             TEXT NOT NULL,
	user_id              TEXT NOT NULL,
	session_id           TEXT NOT NULL DEFAULT '',
	event_type           TEXT NOT NULL,
	action               TEXT NOT NULL,
	resource_type        TEXT NOT NULL DEFAULT '',
	resource_id          TEXT NOT NULL DEFAULT '',
	sensitivity_level    TEXT NOT NULL,
	processing_method    TEXT NOT NULL,
	sanitization_applied BOOLEAN NOT NULL DEFAULT FALSE,
	external_service_used BOOLEAN NOT NULL DEFAULT FALSE,
	compliance_flags     TEXT[] NOT NULL DEFAULT '{}',
	input_hash           TEXT NOT NULL DEFAULT '',
	output_hash          TEXT NOT NULL DEFAULT '',
	input_length         INTEGER NOT NULL DEFAULT 0,
	output_length        INTEGER NOT NULL DEFAULT 0,
	processing_time_ms   BIGINT NOT NULL DEFAULT 0,
	model_used           TEXT NOT NULL DEFAULT '',
	tokens_processed     INTEGER NOT NULL DEFAULT 0,
	memory_sample_mb     DOUBLE PRECISION NOT NULL DEFAULT 0,
	status               TEXT NOT NULL,
	error_type           TEXT NOT NULL DEFAULT '',
	error_message        TEXT NOT NULL DEFAULT '',
	fallback_triggered   BOOLEAN NOT NULL DEFAULT FALSE,
	fallback_reason      TEXT NOT NULL DEFAULT '',
	previous_hash        TEXT NOT NULL DEFAULT '',
	event_hash           TEXT NOT NULL,
	chain_position       BIGINT NOT NULL,
	sync_status          TEXT NOT NULL DEFAULT 'pending',
	sync_attempts        INTEGER NOT NULL DEFAULT 0,
	sync_error           TEXT NOT NULL DEFAULT '',
	remote_id            TEXT NOT NULL DEFAULT '',
	last_synced_at       TIMESTAMPTZ,
	event_timestamp      TIMESTAMPTZ NOT NULL,
	client_platform      TEXT NOT NULL DEFAULT ''
);

CREATE UNIQUE INDEX IF NOT EXISTS audit_events_chain_idx
	ON audit_events (trace_id, chain_position);
CREATE INDEX IF NOT EXISTS audit_events_user_idx ON audit_events (user_id);
CREATE INDEX IF NOT EXISTS audit_events_sync_idx ON audit_events (sync_status, sync_attempts);
`

// Migrate creates the audit schema if it does not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply audit schema: %w", err)
	}
	return nil
}

const eventColumns = `
	audit_id, trace_id, user_id, session_id, event_type, action,
	resource_type, resource_id, sensitivity_level, processing_method,
	sanitization_applied, external_service_used, compliance_flags,
	input_hash, output_hash, input_length, output_length,
	processing_time_ms, model_used, tokens_processed, memory_sample_mb,
	status, error_type, error_message, fallback_triggered, fallback_reason,
	previous_hash, event_hash, chain_position,
	sync_status, sync_attempts, sync_error, remote_id, last_synced_at,
	event_timestamp, client_platform`

func (s *Store) Head(ctx context.Context, streamID string) (ledger.Event, error) {
	query := `SELECT ` + eventColumns + `
		FROM audit_events WHERE trace_id = $1
		ORDER BY chain_position DESC LIMIT 1`
	row := s.db.QueryRowContext(ctx, query, streamID)
	event, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Event{}, sentinel.ErrNotFound
	}
	if err != nil {
		return ledger.Event{}, fmt.Errorf("query stream head: %w", err)
	}
	return event, nil
}

func (s *Store) Append(ctx context.Context, e ledger.Event) error {
	query := `INSERT INTO audit_events (` + eventColumns + `) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
		$11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
		$21, $22, $23, $24, $25, $26, $27, $28, $29, $30,
		$31, $32, $33, $34, $35, $36)`

	_, err := s.db.ExecContext(ctx, query,
		e.AuditID, e.TraceID, e.UserID, e.SessionID, e.EventType, e.Action,
		e.ResourceType, e.ResourceID, string(e.Sensitivity), string(e.Method),
		e.SanitizationApplied, e.ExternalServiceUsed, pq.Array(e.ComplianceFlags),
		e.InputHash, e.OutputHash, e.InputLength, e.OutputLength,
		e.ProcessingTimeMs, e.ModelUsed, e.TokensProcessed, e.MemorySampleMB,
		string(e.Status), e.ErrorType, e.ErrorMessage, e.FallbackTriggered, e.FallbackReason,
		e.PreviousHash, e.EventHash, e.ChainPosition,
		string(e.Sync.Status), e.Sync.Attempts, e.Sync.Error, e.Sync.RemoteID, e.Sync.LastSyncedAt,
		e.Timestamp, e.ClientPlatform,
	)
	if err != nil {
		var pqErr *pq.Error
		// 23505: unique_violation on (trace_id, chain_position) means we
		// lost the optimistic race for this position.
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("chain position taken: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, auditID string) (ledger.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM audit_events WHERE audit_id = $1`
	event, err := scanEvent(s.db.QueryRowContext(ctx, query, auditID))
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Event{}, sentinel.ErrNotFound
	}
	if err != nil {
		return ledger.Event{}, fmt.Errorf("query audit event: %w", err)
	}
	return event, nil
}

func (s *Store) ListStream(ctx context.Context, streamID string) ([]ledger.Event, error) {
	query := `SELECT ` + eventColumns + `
		FROM audit_events WHERE trace_id = $1 ORDER BY chain_position ASC`
	rows, err := s.db.QueryContext(ctx, query, streamID)
	if err != nil {
		return nil, fmt.Errorf("query stream: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (s *Store) List(ctx context.Context, filter ledger.Filter) ([]ledger.Event, error) {
	var (
		conds []string
		args  []any
	)
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		conds = append(conds, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.EventType != "" {
		args = append(args, filter.EventType)
		conds = append(conds, fmt.Sprintf("event_type = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + eventColumns + ` FROM audit_events`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY event_timestamp DESC"
	if filter.Take > 0 {
		args = append(args, filter.Take)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (s *Store) Streams(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT trace_id FROM audit_events ORDER BY trace_id`)
	if err != nil {
		return nil, fmt.Errorf("query streams: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan stream id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) UpdateSyncState(ctx context.Context, auditID string, state ledger.SyncState) error {
	query := `UPDATE audit_events
		SET sync_status = $2, sync_attempts = $3, sync_error = $4,
		    remote_id = $5, last_synced_at = $6
		WHERE audit_id = $1`
	res, err := s.db.ExecContext(ctx, query,
		auditID, string(state.Status), state.Attempts, state.Error,
		state.RemoteID, state.LastSyncedAt,
	)
	if err != nil {
		return fmt.Errorf("update sync state: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Store) ListBySync(ctx context.Context, status ledger.SyncStatus, maxAttempts, limit int) ([]ledger.Event, error) {
	query := `SELECT ` + eventColumns + `
		FROM audit_events
		WHERE sync_status = $1 AND ($2 <= 0 OR sync_attempts < $2)
		ORDER BY event_timestamp ASC
		LIMIT $3`
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, query, string(status), maxAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("query events by sync status: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (ledger.Event, error) {
	var (
		e            ledger.Event
		sensitivity  string
		method       string
		status       string
		syncStatus   string
		flags        pq.StringArray
		lastSyncedAt sql.NullTime
	)
	err := row.Scan(
		&e.AuditID, &e.TraceID, &e.UserID, &e.SessionID, &e.EventType, &e.Action,
		&e.ResourceType, &e.ResourceID, &sensitivity, &method,
		&e.SanitizationApplied, &e.ExternalServiceUsed, &flags,
		&e.InputHash, &e.OutputHash, &e.InputLength, &e.OutputLength,
		&e.ProcessingTimeMs, &e.ModelUsed, &e.TokensProcessed, &e.MemorySampleMB,
		&status, &e.ErrorType, &e.ErrorMessage, &e.FallbackTriggered, &e.FallbackReason,
		&e.PreviousHash, &e.EventHash, &e.ChainPosition,
		&syncStatus, &e.Sync.Attempts, &e.Sync.Error, &e.Sync.RemoteID, &lastSyncedAt,
		&e.Timestamp, &e.ClientPlatform,
	)
	if err != nil {
		return ledger.Event{}, err
	}
	e.Sensitivity = ledger.SensitivityLevel(sensitivity)
	e.Method = ledger.ProcessingMethod(method)
	e.Status = ledger.EventStatus(status)
	e.Sync.Status = ledger.SyncStatus(syncStatus)
	e.ComplianceFlags = []string(flags)
	if lastSyncedAt.Valid {
		t := lastSyncedAt.Time
		e.Sync.LastSyncedAt = &t
	}
	e.Timestamp = e.Timestamp.UTC()
	return e, nil
}

func scanEvents(rows *sql.Rows) ([]ledger.Event, error) {
	var events []ledger.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

// Open connects to Postgres and verifies the connection.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}
