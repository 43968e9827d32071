package syncrelay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"sentra/internal/ledger"
)

// Mirror publishes committed ledger entries to a Kafka topic for downstream
// analytics and SIEM consumers. The local ledger remains the source of
// truth; mirroring is fire-and-forget and never blocks an append.
type Mirror struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// NewMirror connects to the brokers and ensures the topic exists.
func NewMirror(ctx context.Context, brokers []string, topic string, logger *slog.Logger) (*Mirror, error) {
	if logger == nil {
		logger = slog.Default()
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	admin := kadm.NewClient(client)
	resp, err := admin.CreateTopics(ctx, 3, 1, nil, topic)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("ensure audit topic: %w", err)
	}
	for _, res := range resp {
		// TOPIC_ALREADY_EXISTS is the normal case after first boot.
		if res.Err != nil && !errors.Is(res.Err, kerr.TopicAlreadyExists) {
			client.Close()
			return nil, fmt.Errorf("ensure audit topic %s: %w", res.Topic, res.Err)
		}
	}

	return &Mirror{client: client, topic: topic, logger: logger}, nil
}

// mirrorPayload is the JSON shape produced to Kafka. Field names are stable;
// consumers depend on them.
type mirrorPayload struct {
	AuditID          string   `json:"auditId"`
	TraceID          string   `json:"traceId"`
	UserID           string   `json:"userId"`
	EventType        string   `json:"eventType"`
	Action           string   `json:"action"`
	SensitivityLevel string   `json:"sensitivityLevel"`
	ProcessingMethod string   `json:"processingMethod"`
	Status           string   `json:"status"`
	EventHash        string   `json:"eventHash"`
	PreviousHash     string   `json:"previousHash,omitempty"`
	ChainPosition    int64    `json:"chainPosition"`
	ComplianceFlags  []string `json:"complianceFlags"`
	EventTimestamp   string   `json:"eventTimestamp"`
}

// Publish produces one event asynchronously. Delivery failures are logged;
// the relay's compliance path does not depend on the mirror.
func (m *Mirror) Publish(ctx context.Context, event ledger.Event) {
	payload, err := json.Marshal(mirrorPayload{
		AuditID:          event.AuditID,
		TraceID:          event.TraceID,
		UserID:           event.UserID,
		EventType:        event.EventType,
		Action:           event.Action,
		SensitivityLevel: string(event.Sensitivity),
		ProcessingMethod: string(event.Method),
		Status:           string(event.Status),
		EventHash:        event.EventHash,
		PreviousHash:     event.PreviousHash,
		ChainPosition:    event.ChainPosition,
		ComplianceFlags:  event.ComplianceFlags,
		EventTimestamp:   event.Timestamp.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		m.logger.Error("marshal mirror payload failed", "audit_id", event.AuditID, "error", err)
		return
	}

	record := &kgo.Record{
		Topic: m.topic,
		Key:   []byte(event.AuditID),
		Value: payload,
	}
	m.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			m.logger.Error("mirror produce failed",
				"audit_id", event.AuditID,
				"topic", m.topic,
				"error", err,
			)
		}
	})
}

// Close flushes outstanding records and releases the client.
func (m *Mirror) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = m.client.Flush(ctx)
	m.client.Close()
}
