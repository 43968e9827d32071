package ledger

import "time"

// SensitivityLevel is a coarse classification of how privacy-critical a piece
// of text is. It drives redaction strength and compliance tagging.
type SensitivityLevel string

const (
	SensitivityPublic       SensitivityLevel = "PUBLIC"
	SensitivityPersonal     SensitivityLevel = "PERSONAL"
	SensitivitySensitive    SensitivityLevel = "SENSITIVE"
	SensitivityConfidential SensitivityLevel = "CONFIDENTIAL"
)

// Valid reports whether the level is one of the closed set.
func (l SensitivityLevel) Valid() bool {
	switch l {
	case SensitivityPublic, SensitivityPersonal, SensitivitySensitive, SensitivityConfidential:
		return true
	}
	return false
}

// ProcessingMethod identifies the capability tier that produced a decision,
// from the highest-capability local tier down to the fail-safe block.
type ProcessingMethod string

const (
	MethodAcceleratedLocal ProcessingMethod = "ACCELERATED_LOCAL"
	MethodCPUFallback      ProcessingMethod = "CPU_FALLBACK"
	MethodPatternFallback  ProcessingMethod = "PATTERN_FALLBACK"
	MethodEmergencyBlock   ProcessingMethod = "EMERGENCY_BLOCK"
)

// Valid reports whether the method is one of the closed set.
func (m ProcessingMethod) Valid() bool {
	switch m {
	case MethodAcceleratedLocal, MethodCPUFallback, MethodPatternFallback, MethodEmergencyBlock:
		return true
	}
	return false
}

// EventStatus is the terminal outcome recorded for an audited action.
type EventStatus string

const (
	StatusSuccess EventStatus = "success"
	StatusWarning EventStatus = "warning"
	StatusError   EventStatus = "error"
	StatusBlocked EventStatus = "blocked"
)

// Valid reports whether the status is one of the closed set.
func (s EventStatus) Valid() bool {
	switch s {
	case StatusSuccess, StatusWarning, StatusError, StatusBlocked:
		return true
	}
	return false
}

// SyncStatus tracks replication of a local event to the remote compliance store.
type SyncStatus string

const (
	SyncPending SyncStatus = "pending"
	SyncSynced  SyncStatus = "synced"
	SyncFailed  SyncStatus = "failed"
)

// Event types emitted by the processing pipeline.
const (
	EventModelDecision     = "MODEL_DECISION"
	EventFallbackTriggered = "FALLBACK_TRIGGERED"
	EventEmergencyBlock    = "EMERGENCY_BLOCK"
)

// Compliance flags attached to every event. Fixed framework tags plus a
// sensitivity tag, and an incident tag for emergency blocks.
const (
	FlagDataProtectionByDesign = "gdpr:data-protection-by-design"
	FlagRecordsOfProcessing    = "gdpr:records-of-processing"
	FlagIncidentResponse       = "incident-response"
)

// complianceFlags builds the flag set for an event. Deterministic so the
// flags participate in nothing hash-related but remain reproducible.
func complianceFlags(level SensitivityLevel, eventType string) []string {
	flags := []string{
		FlagDataProtectionByDesign,
		FlagRecordsOfProcessing,
		"sensitivity:" + string(level),
	}
	if eventType == EventEmergencyBlock {
		flags = append(flags, FlagIncidentResponse)
	}
	return flags
}

// Draft carries the caller-supplied fields of an audit event. The ledger
// validates it, computes chain linkage, and returns the committed Event.
// Drafts never carry raw user text: only hashes, lengths, and redacted tags.
type Draft struct {
	TraceID   string
	UserID    string
	SessionID string

	EventType    string
	Action       string
	ResourceType string
	ResourceID   string

	Sensitivity         SensitivityLevel
	Method              ProcessingMethod
	SanitizationApplied bool

	InputHash    string
	OutputHash   string
	InputLength  int
	OutputLength int

	ProcessingTimeMs int64
	ModelUsed        string
	TokensProcessed  int
	MemorySampleMB   float64

	Status            EventStatus
	ErrorType         string
	ErrorMessage      string
	FallbackTriggered bool
	FallbackReason    string

	// Timestamp defaults to the ledger clock when zero.
	Timestamp time.Time

	// ClientPlatform holds parsed client metadata (browser/OS), never an IP
	// or a raw User-Agent string.
	ClientPlatform string
}

// SyncState holds the only mutable fields of a committed event. Transitions
// are monotonic: pending -> synced, or pending -> failed -> (retry) -> synced/failed.
type SyncState struct {
	Status       SyncStatus
	Attempts     int
	Error        string
	RemoteID     string
	LastSyncedAt *time.Time
}

// Event is one immutable, hash-chained audit record. Everything except
// SyncState is fixed at append time; recomputing EventHash from the stored
// fields must reproduce the stored value exactly.
type Event struct {
	AuditID   string
	TraceID   string
	UserID    string
	SessionID string

	EventType    string
	Action       string
	ResourceType string
	ResourceID   string

	Sensitivity         SensitivityLevel
	Method              ProcessingMethod
	SanitizationApplied bool
	// ExternalServiceUsed is false for every event this subsystem produces;
	// the field exists so the stored record states the invariant explicitly.
	ExternalServiceUsed bool
	ComplianceFlags     []string

	InputHash    string
	OutputHash   string
	InputLength  int
	OutputLength int

	ProcessingTimeMs int64
	ModelUsed        string
	TokensProcessed  int
	MemorySampleMB   float64

	Status            EventStatus
	ErrorType         string
	ErrorMessage      string
	FallbackTriggered bool
	FallbackReason    string

	// PreviousHash is empty only for the first event of a stream.
	PreviousHash  string
	EventHash     string
	ChainPosition int64

	Sync SyncState

	Timestamp      time.Time
	ClientPlatform string
}
