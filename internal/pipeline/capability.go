package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"sentra/internal/ledger"
)

// RuntimeCapability drives a local inference runtime over its loopback HTTP
// API. Content never leaves the host: the runtime is a sidecar on the same
// machine, which is what keeps the ledger's external-service invariant true.
//
// Init probes the runtime's health endpoint; a runtime that is not installed
// or not running fails init and the orchestrator cascades past it.
type RuntimeCapability struct {
	baseURL string
	model   string
	http    *http.Client
}

// NewRuntimeCapability creates a capability for the runtime at baseURL.
// An empty baseURL is a valid configuration meaning "not installed"; Init
// fails immediately and the cascade moves on.
func NewRuntimeCapability(baseURL, model string, timeout time.Duration) *RuntimeCapability {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &RuntimeCapability{
		baseURL: baseURL,
		model:   model,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *RuntimeCapability) Init(ctx context.Context) error {
	if c.baseURL == "" {
		return fmt.Errorf("runtime not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("runtime unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("runtime unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

type inferRequest struct {
	Model            string `json:"model"`
	Text             string `json:"text"`
	SensitivityLevel string `json:"sensitivityLevel"`
}

type inferResponse struct {
	Decision        string   `json:"decision"`
	Confidence      float64  `json:"confidence"`
	Reasons         []string `json:"reasons"`
	Recommendations []string `json:"recommendations"`
	Tokens          int      `json:"tokens"`
}

func (c *RuntimeCapability) Infer(ctx context.Context, text string, level ledger.SensitivityLevel) (Decision, error) {
	payload, err := json.Marshal(inferRequest{
		Model:            c.model,
		Text:             text,
		SensitivityLevel: string(level),
	})
	if err != nil {
		return Decision{}, fmt.Errorf("marshal infer request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/moderate", bytes.NewReader(payload))
	if err != nil {
		return Decision{}, fmt.Errorf("build infer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Decision{}, fmt.Errorf("infer: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Decision{}, fmt.Errorf("infer: runtime returned %d", resp.StatusCode)
	}

	var body inferResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Decision{}, fmt.Errorf("decode infer response: %w", err)
	}

	outcome := Outcome(body.Decision)
	switch outcome {
	case OutcomeAllow, OutcomeFlag, OutcomeReject:
	default:
		return Decision{}, fmt.Errorf("infer: unknown decision %q", body.Decision)
	}

	return Decision{
		Outcome:         outcome,
		Confidence:      body.Confidence,
		Reasons:         body.Reasons,
		Recommendations: body.Recommendations,
		Model:           c.model,
		Tokens:          body.Tokens,
	}, nil
}
