package httptransport

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"sentra/internal/ledger"
	"sentra/internal/pipeline"
	"sentra/internal/syncrelay"
)

// Processor runs content through the sensitivity pipeline.
type Processor interface {
	Process(ctx context.Context, req pipeline.Request) (pipeline.Result, error)
	Mode() ledger.ProcessingMethod
}

// AuditReader exposes the committed audit trail.
type AuditReader interface {
	List(ctx context.Context, filter ledger.Filter) ([]ledger.Event, error)
	ValidateChain(ctx context.Context, streamID string) (ledger.ValidationReport, error)
}

// SyncOps exposes the relay's operational surface.
type SyncOps interface {
	RetryFailedSyncs(ctx context.Context) (int, error)
	VerifyRemote(ctx context.Context, traceID string) (syncrelay.RemoteChainReport, error)
}

// Handler is the thin HTTP layer. It delegates to domain services and owns
// nothing but request decoding and response shaping.
type Handler struct {
	processor Processor
	audit     AuditReader
	sync      SyncOps
}

func NewHandler(processor Processor, audit AuditReader, sync SyncOps) *Handler {
	return &Handler{processor: processor, audit: audit, sync: sync}
}

type processRequest struct {
	Text         string `json:"text"`
	UserID       string `json:"userId"`
	SessionID    string `json:"sessionId,omitempty"`
	CategoryHint string `json:"categoryHint,omitempty"`
}

type processResponse struct {
	TraceID            string   `json:"traceId"`
	Decision           string   `json:"decision"`
	Confidence         float64  `json:"confidence"`
	Reasons            []string `json:"reasons,omitempty"`
	Recommendations    []string `json:"recommendations,omitempty"`
	ProcessingMethod   string   `json:"processingMethod"`
	SensitivityLevel   string   `json:"sensitivityLevel"`
	RiskScore          float64  `json:"riskScore"`
	TimingMs           int64    `json:"timingMs"`
	FallbacksTriggered int      `json:"fallbacksTriggered"`
}

func (h *Handler) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{
			"error":             "invalid_input",
			"error_description": "invalid request body",
		})
		return
	}
	if req.Text == "" || req.UserID == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{
			"error":             "invalid_input",
			"error_description": "text and userId are required",
		})
		return
	}

	res, err := h.processor.Process(r.Context(), pipeline.Request{
		Text:         req.Text,
		UserID:       req.UserID,
		SessionID:    req.SessionID,
		CategoryHint: req.CategoryHint,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, processResponse{
		TraceID:            res.TraceID,
		Decision:           string(res.Decision),
		Confidence:         res.Confidence,
		Reasons:            res.Reasons,
		Recommendations:    res.Recommendations,
		ProcessingMethod:   string(res.Method),
		SensitivityLevel:   string(res.Sensitivity),
		RiskScore:          res.RiskScore,
		TimingMs:           res.TimingMs,
		FallbacksTriggered: res.FallbacksTriggered,
	})
}

type eventResponse struct {
	AuditID          string     `json:"auditId"`
	TraceID          string     `json:"traceId"`
	UserID           string     `json:"userId"`
	EventType        string     `json:"eventType"`
	Action           string     `json:"action"`
	SensitivityLevel string     `json:"sensitivityLevel"`
	ProcessingMethod string     `json:"processingMethod"`
	Status           string     `json:"status"`
	ComplianceFlags  []string   `json:"complianceFlags"`
	InputHash        string     `json:"inputHash,omitempty"`
	OutputHash       string     `json:"outputHash,omitempty"`
	ChainPosition    int64      `json:"chainPosition"`
	EventHash        string     `json:"eventHash"`
	PreviousHash     string     `json:"previousHash,omitempty"`
	SyncStatus       string     `json:"syncStatus"`
	SyncAttempts     int        `json:"syncAttempts"`
	RemoteID         string     `json:"remoteId,omitempty"`
	Timestamp        time.Time  `json:"timestamp"`
	LastSyncedAt     *time.Time `json:"lastSyncedAt,omitempty"`
}

func toEventResponse(e ledger.Event) eventResponse {
	return eventResponse{
		AuditID:          e.AuditID,
		TraceID:          e.TraceID,
		UserID:           e.UserID,
		EventType:        e.EventType,
		Action:           e.Action,
		SensitivityLevel: string(e.Sensitivity),
		ProcessingMethod: string(e.Method),
		Status:           string(e.Status),
		ComplianceFlags:  e.ComplianceFlags,
		InputHash:        e.InputHash,
		OutputHash:       e.OutputHash,
		ChainPosition:    e.ChainPosition,
		EventHash:        e.EventHash,
		PreviousHash:     e.PreviousHash,
		SyncStatus:       string(e.Sync.Status),
		SyncAttempts:     e.Sync.Attempts,
		RemoteID:         e.Sync.RemoteID,
		Timestamp:        e.Timestamp,
		LastSyncedAt:     e.Sync.LastSyncedAt,
	}
}

func (h *Handler) handleListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ledger.Filter{
		UserID:    q.Get("userId"),
		EventType: q.Get("eventType"),
		Status:    ledger.EventStatus(q.Get("status")),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		respondJSON(w, http.StatusBadRequest, map[string]string{
			"error":             "invalid_input",
			"error_description": "unknown status filter",
		})
		return
	}
	if take := q.Get("take"); take != "" {
		n, err := strconv.Atoi(take)
		if err != nil || n < 0 {
			respondJSON(w, http.StatusBadRequest, map[string]string{
				"error":             "invalid_input",
				"error_description": "take must be a non-negative integer",
			})
			return
		}
		filter.Take = n
	}

	events, err := h.audit.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]eventResponse, len(events))
	for i, e := range events {
		out[i] = toEventResponse(e)
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"events": out,
		"count":  len(out),
	})
}

type validateResponse struct {
	TraceID     string   `json:"traceId"`
	IsValid     bool     `json:"isValid"`
	ChainLength int      `json:"chainLength"`
	Errors      []string `json:"errors,omitempty"`

	Remote *remoteValidateResponse `json:"remote,omitempty"`
}

type remoteValidateResponse struct {
	IsValid bool     `json:"isValid"`
	Errors  []string `json:"errors,omitempty"`
}

func (h *Handler) handleValidateChain(w http.ResponseWriter, r *http.Request) {
	traceID := chi.URLParam(r, "traceID")

	report, err := h.audit.ValidateChain(r.Context(), traceID)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := validateResponse{
		TraceID:     traceID,
		IsValid:     report.IsValid,
		ChainLength: report.Length,
		Errors:      report.Errors(),
	}

	// Remote validation is best effort: a dead compliance store must not
	// mask the local verdict.
	if r.URL.Query().Get("remote") == "true" {
		remote, err := h.sync.VerifyRemote(r.Context(), traceID)
		if err != nil {
			resp.Remote = &remoteValidateResponse{
				IsValid: false,
				Errors:  []string{"remote validation unavailable: " + err.Error()},
			}
		} else {
			resp.Remote = &remoteValidateResponse{
				IsValid: remote.IsValid,
				Errors:  remote.Breaks,
			}
		}
	}

	respondJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleRetrySyncs(w http.ResponseWriter, r *http.Request) {
	count, err := h.sync.RetryFailedSyncs(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"requeued": count})
}

func (h *Handler) handleMode(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"processingMethod": string(h.processor.Mode()),
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
