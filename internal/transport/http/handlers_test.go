package httptransport_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentra/internal/ledger"
	"sentra/internal/pipeline"
	"sentra/internal/syncrelay"
	httptransport "sentra/internal/transport/http"
)

var testSigningKey = []byte("test-signing-key")

type fakeProcessor struct {
	result pipeline.Result
	err    error
	gotReq pipeline.Request
}

func (f *fakeProcessor) Process(_ context.Context, req pipeline.Request) (pipeline.Result, error) {
	f.gotReq = req
	return f.result, f.err
}

func (f *fakeProcessor) Mode() ledger.ProcessingMethod { return ledger.MethodAcceleratedLocal }

type fakeAudit struct {
	events []ledger.Event
	report ledger.ValidationReport
	filter ledger.Filter
}

func (f *fakeAudit) List(_ context.Context, filter ledger.Filter) ([]ledger.Event, error) {
	f.filter = filter
	return f.events, nil
}

func (f *fakeAudit) ValidateChain(_ context.Context, streamID string) (ledger.ValidationReport, error) {
	f.report.StreamID = streamID
	return f.report, nil
}

type fakeSync struct {
	requeued  int
	remote    syncrelay.RemoteChainReport
	remoteErr error
}

func (f *fakeSync) RetryFailedSyncs(context.Context) (int, error) { return f.requeued, nil }

func (f *fakeSync) VerifyRemote(context.Context, string) (syncrelay.RemoteChainReport, error) {
	return f.remote, f.remoteErr
}

func newServer(t *testing.T, p *fakeProcessor, a *fakeAudit, s *fakeSync) http.Handler {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	h := httptransport.NewHandler(p, a, s)
	return httptransport.NewRouter(h, testSigningKey, logger)
}

func bearerToken(t *testing.T) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "ops-user",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(testSigningKey)
	require.NoError(t, err)
	return "Bearer " + signed
}

func TestProcessEndpoint(t *testing.T) {
	p := &fakeProcessor{result: pipeline.Result{
		TraceID:     "trace-1",
		Decision:    pipeline.OutcomeAllow,
		Confidence:  0.9,
		Method:      ledger.MethodAcceleratedLocal,
		Sensitivity: ledger.SensitivityPersonal,
	}}
	srv := newServer(t, p, &fakeAudit{}, &fakeSync{})

	body := `{"text":"hello","userId":"user-1","categoryHint":"personality"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/process", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello", p.gotReq.Text)
	assert.Equal(t, "personality", p.gotReq.CategoryHint)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "allow", resp["decision"])
	assert.Equal(t, "trace-1", resp["traceId"])
	assert.Equal(t, "ACCELERATED_LOCAL", resp["processingMethod"])
}

func TestProcessEndpointValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"text": `},
		{"missing text", `{"userId":"user-1"}`},
		{"missing user", `{"text":"hello"}`},
	}

	srv := newServer(t, &fakeProcessor{}, &fakeAudit{}, &fakeSync{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/process", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestAuditEndpointsRequireAuth(t *testing.T) {
	srv := newServer(t, &fakeProcessor{}, &fakeAudit{}, &fakeSync{})

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/v1/audit/events"},
		{http.MethodGet, "/v1/audit/chains/trace-1/validate"},
		{http.MethodPost, "/v1/audit/sync/retry"},
		{http.MethodGet, "/v1/pipeline/mode"},
	}

	for _, p := range paths {
		t.Run(p.path, func(t *testing.T) {
			req := httptest.NewRequest(p.method, p.path, nil)
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)

			req = httptest.NewRequest(p.method, p.path, nil)
			req.Header.Set("Authorization", "Bearer not-a-token")
			rec = httptest.NewRecorder()
			srv.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestListEventsEndpoint(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	audit := &fakeAudit{events: []ledger.Event{{
		AuditID:       "audit-1",
		TraceID:       "trace-1",
		UserID:        "user-1",
		EventType:     ledger.EventModelDecision,
		Action:        "decision allow",
		Sensitivity:   ledger.SensitivityPersonal,
		Method:        ledger.MethodAcceleratedLocal,
		Status:        ledger.StatusSuccess,
		ChainPosition: 1,
		EventHash:     "sha256:abc",
		Sync:          ledger.SyncState{Status: ledger.SyncSynced, Attempts: 1, RemoteID: "remote-1"},
		Timestamp:     now,
	}}}
	srv := newServer(t, &fakeProcessor{}, audit, &fakeSync{})

	req := httptest.NewRequest(http.MethodGet, "/v1/audit/events?userId=user-1&status=success&take=10", nil)
	req.Header.Set("Authorization", bearerToken(t))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ledger.Filter{UserID: "user-1", Status: ledger.StatusSuccess, Take: 10}, audit.filter)

	var resp struct {
		Events []map[string]any `json:"events"`
		Count  int              `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "audit-1", resp.Events[0]["auditId"])
	assert.Equal(t, "synced", resp.Events[0]["syncStatus"])
	assert.Equal(t, "remote-1", resp.Events[0]["remoteId"])
}

func TestListEventsRejectsBadFilters(t *testing.T) {
	srv := newServer(t, &fakeProcessor{}, &fakeAudit{}, &fakeSync{})

	for _, query := range []string{"status=bogus", "take=-1", "take=abc"} {
		req := httptest.NewRequest(http.MethodGet, "/v1/audit/events?"+query, nil)
		req.Header.Set("Authorization", bearerToken(t))
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, query)
	}
}

func TestValidateChainEndpoint(t *testing.T) {
	audit := &fakeAudit{report: ledger.ValidationReport{
		IsValid: false,
		Length:  5,
		Breaks: []ledger.ChainBreak{
			{Position: 3, Reason: "stored hash does not match recomputed hash"},
		},
	}}
	srv := newServer(t, &fakeProcessor{}, audit, &fakeSync{})

	req := httptest.NewRequest(http.MethodGet, "/v1/audit/chains/trace-9/validate", nil)
	req.Header.Set("Authorization", bearerToken(t))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		TraceID     string   `json:"traceId"`
		IsValid     bool     `json:"isValid"`
		ChainLength int      `json:"chainLength"`
		Errors      []string `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "trace-9", resp.TraceID)
	assert.False(t, resp.IsValid)
	assert.Equal(t, 5, resp.ChainLength)
	require.Len(t, resp.Errors, 1)
	assert.Contains(t, resp.Errors[0], "position 3")
}

func TestValidateChainRemote(t *testing.T) {
	audit := &fakeAudit{report: ledger.ValidationReport{IsValid: true, Length: 2}}
	sync := &fakeSync{remote: syncrelay.RemoteChainReport{IsValid: true}}
	srv := newServer(t, &fakeProcessor{}, audit, sync)

	req := httptest.NewRequest(http.MethodGet, "/v1/audit/chains/trace-1/validate?remote=true", nil)
	req.Header.Set("Authorization", bearerToken(t))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		IsValid bool `json:"isValid"`
		Remote  *struct {
			IsValid bool     `json:"isValid"`
			Errors  []string `json:"errors"`
		} `json:"remote"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.IsValid)
	require.NotNil(t, resp.Remote)
	assert.True(t, resp.Remote.IsValid)
}

func TestRetrySyncsEndpoint(t *testing.T) {
	srv := newServer(t, &fakeProcessor{}, &fakeAudit{}, &fakeSync{requeued: 4})

	req := httptest.NewRequest(http.MethodPost, "/v1/audit/sync/retry", nil)
	req.Header.Set("Authorization", bearerToken(t))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 4, resp["requeued"])
}

func TestHealthz(t *testing.T) {
	srv := newServer(t, &fakeProcessor{}, &fakeAudit{}, &fakeSync{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestIDAssigned(t *testing.T) {
	srv := newServer(t, &fakeProcessor{}, &fakeAudit{}, &fakeSync{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
}
