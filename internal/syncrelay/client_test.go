package syncrelay_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentra/internal/syncrelay"
)

func TestHTTPClientRegisterEvent(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/events", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]string{"remoteId": "remote-42"})
	}))
	defer srv.Close()

	client := syncrelay.NewHTTPClient(srv.URL, time.Second)
	remoteID, err := client.RegisterEvent(context.Background(), "trace-1", "user-1", "MODEL_DECISION", "decision allow")
	require.NoError(t, err)
	assert.Equal(t, "remote-42", remoteID)

	assert.Equal(t, "trace-1", got["traceId"])
	assert.Equal(t, "user-1", got["userId"])
	// The bare register call carries no metadata block at all.
	assert.NotContains(t, got, "metadata")
}

func TestHTTPClientRegisterEventWithMetadata(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]string{"remoteId": "remote-43"})
	}))
	defer srv.Close()

	client := syncrelay.NewHTTPClient(srv.URL, time.Second)
	remoteID, err := client.RegisterEventWithMetadata(context.Background(), "trace-1", "user-1", "MODEL_DECISION", "decision allow",
		map[string]any{"eventHash": "sha256:abc", "chainPosition": 3})
	require.NoError(t, err)
	assert.Equal(t, "remote-43", remoteID)

	meta, ok := got["metadata"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "sha256:abc", meta["eventHash"])
}

func TestHTTPClientRegisterErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"remote failure", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}},
		{"empty remote id", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]string{"remoteId": ""})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			client := syncrelay.NewHTTPClient(srv.URL, time.Second)
			_, err := client.RegisterEvent(context.Background(), "trace-1", "user-1", "MODEL_DECISION", "act")
			assert.Error(t, err)
		})
	}
}

func TestHTTPClientValidateAuditChain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chains/trace-7/validate", r.URL.Path)
		json.NewEncoder(w).Encode(syncrelay.RemoteChainReport{
			IsValid: false,
			Breaks:  []string{"position 2: previous hash does not match predecessor"},
		})
	}))
	defer srv.Close()

	client := syncrelay.NewHTTPClient(srv.URL, time.Second)
	report, err := client.ValidateAuditChain(context.Background(), "trace-7")
	require.NoError(t, err)
	assert.False(t, report.IsValid)
	assert.Len(t, report.Breaks, 1)
}
