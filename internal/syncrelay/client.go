package syncrelay

//go:generate mockgen -source=client.go -destination=mocks/client_mock.go -package=mocks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// RemoteClient is the compliance-store API. Both register calls are
// idempotent on the remote side: re-registering an event returns the same
// remote ID, which is what makes retries safe.
type RemoteClient interface {
	// RegisterEvent registers a bare event and returns the remote ID.
	RegisterEvent(ctx context.Context, traceID, userID, eventType, action string) (string, error)

	// RegisterEventWithMetadata registers an event with its chain and
	// compliance metadata attached.
	RegisterEventWithMetadata(ctx context.Context, traceID, userID, eventType, action string, metadata map[string]any) (string, error)

	// ValidateAuditChain asks the remote store to verify its copy of a
	// stream's chain.
	ValidateAuditChain(ctx context.Context, traceID string) (RemoteChainReport, error)
}

// RemoteChainReport is the remote store's view of one stream's integrity.
type RemoteChainReport struct {
	IsValid bool     `json:"isValid"`
	Breaks  []string `json:"breaks"`
}

// HTTPClient talks to the compliance store over JSON/HTTP.
type HTTPClient struct {
	baseURL string
	http    *http.Client
}

// NewHTTPClient creates a client for the given base URL.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type registerRequest struct {
	TraceID   string         `json:"traceId"`
	UserID    string         `json:"userId"`
	EventType string         `json:"eventType"`
	Action    string         `json:"action"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type registerResponse struct {
	RemoteID string `json:"remoteId"`
}

func (c *HTTPClient) RegisterEvent(ctx context.Context, traceID, userID, eventType, action string) (string, error) {
	return c.register(ctx, registerRequest{
		TraceID: traceID, UserID: userID, EventType: eventType, Action: action,
	})
}

func (c *HTTPClient) RegisterEventWithMetadata(ctx context.Context, traceID, userID, eventType, action string, metadata map[string]any) (string, error) {
	return c.register(ctx, registerRequest{
		TraceID: traceID, UserID: userID, EventType: eventType, Action: action, Metadata: metadata,
	})
}

func (c *HTTPClient) register(ctx context.Context, reqBody registerRequest) (string, error) {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal register request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/events", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build register request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("register event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("register event: remote returned %d", resp.StatusCode)
	}

	var body registerResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode register response: %w", err)
	}
	if body.RemoteID == "" {
		return "", fmt.Errorf("register event: remote returned empty id")
	}
	return body.RemoteID, nil
}

func (c *HTTPClient) ValidateAuditChain(ctx context.Context, traceID string) (RemoteChainReport, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/chains/"+traceID+"/validate", nil)
	if err != nil {
		return RemoteChainReport{}, fmt.Errorf("build validate request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return RemoteChainReport{}, fmt.Errorf("validate chain: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return RemoteChainReport{}, fmt.Errorf("validate chain: remote returned %d", resp.StatusCode)
	}

	var report RemoteChainReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return RemoteChainReport{}, fmt.Errorf("decode validate response: %w", err)
	}
	return report, nil
}
