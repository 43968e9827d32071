// Package pipeline orchestrates content processing: classify, sanitize,
// decide, audit. Decisions degrade through weaker capability tiers rather
// than fail outright, and every terminal state writes exactly one ledger
// entry. The fail-safe is always reject, never fail-open.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"sentra/internal/classify"
	"sentra/internal/ledger"
	"sentra/internal/pipeline/cache"
	"sentra/internal/pipeline/metrics"
	"sentra/internal/sanitize"
	"sentra/pkg/requestcontext"
)

var tracer = otel.Tracer("sentra/pipeline")

// systemUser owns audit events that have no requesting user, such as
// startup fallbacks.
const systemUser = "system"

// Request is one content-processing call from the application collaborator.
type Request struct {
	Text         string
	UserID       string
	SessionID    string
	CategoryHint string
}

// Result is what the caller gets back. There is always a decision; failure
// modes surface as reject, never as an unhandled error.
type Result struct {
	TraceID            string
	Decision           Outcome
	Confidence         float64
	Reasons            []string
	Recommendations    []string
	Method             ledger.ProcessingMethod
	Sensitivity        ledger.SensitivityLevel
	RiskScore          float64
	TimingMs           int64
	FallbacksTriggered int
}

// Orchestrator owns the capability cascade and the audit trail of every
// request that flows through it.
type Orchestrator struct {
	ledger     *ledger.Ledger
	classifier *classify.Classifier
	sanitizer  *sanitize.Engine
	tiers      []Tier
	pattern    Tier
	cache      *cache.Cache
	metrics    *metrics.Metrics
	logger     *slog.Logger
	now        func() time.Time

	mu     sync.RWMutex
	active Tier
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithCache enables the Redis decision cache.
func WithCache(c *cache.Cache) Option {
	return func(o *Orchestrator) { o.cache = c }
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithClock overrides the timestamp source for tests.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithPatternTier replaces the last-resort tier. Tests use this to simulate
// total processing failure; production keeps the default.
func WithPatternTier(t Tier) Option {
	return func(o *Orchestrator) { o.pattern = t }
}

// New creates an Orchestrator. tiers are the capability tiers in descending
// capability order; the pattern tier is appended automatically as the
// always-available last resort.
func New(led *ledger.Ledger, classifier *classify.Classifier, sanitizer *sanitize.Engine, tiers []Tier, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		ledger:     led,
		classifier: classifier,
		sanitizer:  sanitizer,
		tiers:      tiers,
		pattern:    NewPatternTier(),
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start runs the capability cascade: tiers are initialized in order and each
// failure is audited as a FALLBACK_TRIGGERED transition to the next tier.
// The pattern tier cannot fail to initialize, so Start always leaves the
// orchestrator with a working mode.
func (o *Orchestrator) Start(ctx context.Context) error {
	startupTrace := "startup-" + uuid.NewString()
	candidates := append(append([]Tier{}, o.tiers...), o.pattern)

	for i, tier := range candidates {
		err := tier.Init(ctx)
		if err == nil {
			o.mu.Lock()
			o.active = tier
			o.mu.Unlock()
			o.logger.Info("pipeline initialized", "method", tier.Method())
			return nil
		}

		next := o.pattern.Method()
		if i+1 < len(candidates) {
			next = candidates[i+1].Method()
		}
		o.logger.Warn("capability tier failed to initialize, falling back",
			"from", tier.Method(),
			"to", next,
			"error", err,
		)
		o.metrics.IncFallback(string(tier.Method()), string(next))

		if _, auditErr := o.ledger.Append(ctx, ledger.Draft{
			TraceID:           startupTrace,
			UserID:            systemUser,
			EventType:         ledger.EventFallbackTriggered,
			Action:            fmt.Sprintf("init fallback %s->%s", tier.Method(), next),
			Sensitivity:       ledger.SensitivityPublic,
			Method:            next,
			Status:            ledger.StatusWarning,
			ErrorType:         "capability_init_failure",
			ErrorMessage:      err.Error(),
			FallbackTriggered: true,
			FallbackReason:    fmt.Sprintf("init failed for %s", tier.Method()),
		}); auditErr != nil {
			return fmt.Errorf("audit init fallback: %w", auditErr)
		}
	}

	// Unreachable: the pattern tier's Init never errors. Guard anyway.
	o.mu.Lock()
	o.active = o.pattern
	o.mu.Unlock()
	return nil
}

// Mode returns the currently active processing method.
func (o *Orchestrator) Mode() ledger.ProcessingMethod {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.active == nil {
		return ledger.MethodPatternFallback
	}
	return o.active.Method()
}

// Process runs one request through the pipeline. Regardless of outcome,
// exactly one terminal audit event (MODEL_DECISION or EMERGENCY_BLOCK) is
// written for the request's trace; a failed ledger write is the only error
// surfaced, because an unaudited decision must not be served.
func (o *Orchestrator) Process(ctx context.Context, req Request) (Result, error) {
	start := o.now()
	traceID := requestcontext.TraceID(ctx)
	if traceID == "" {
		traceID = uuid.NewString()
	}

	ctx, span := tracer.Start(ctx, "pipeline.Process", trace.WithAttributes(
		attribute.String("pipeline.trace_id", traceID),
	))
	defer span.End()

	level := o.classifier.Classify(req.Text, classify.Context{CategoryHint: req.CategoryHint})
	sanitized := o.sanitizer.Sanitize(req.Text, level)
	span.SetAttributes(attribute.String("pipeline.sensitivity", string(level)))

	inputHash := ledger.Fingerprint(req.Text)
	outputHash := ledger.Fingerprint(sanitized.SanitizedText)

	base := ledger.Draft{
		TraceID:             traceID,
		UserID:              req.UserID,
		SessionID:           req.SessionID,
		Sensitivity:         level,
		SanitizationApplied: len(sanitized.RemovedElements) > 0,
		InputHash:           inputHash,
		OutputHash:          outputHash,
		InputLength:         len(req.Text),
		OutputLength:        len(sanitized.SanitizedText),
		ClientPlatform:      requestcontext.ClientPlatform(ctx),
	}

	// Cache lookup first; a hit skips inference but still gets audited.
	if entry, ok := o.cache.Get(ctx, inputHash, level); ok {
		o.metrics.IncCacheHit()
		decision := Decision{
			Outcome:         Outcome(entry.Decision),
			Confidence:      entry.Confidence,
			Reasons:         entry.Reasons,
			Recommendations: entry.Recommendations,
			Model:           "decision-cache",
		}
		return o.finish(ctx, base, decision, ledger.ProcessingMethod(entry.Method), sanitized, start, 0)
	}

	active := o.activeTier()
	decision, err := active.Decide(ctx, sanitized.SanitizedText, level)
	if err == nil {
		o.cache.Put(ctx, inputHash, level, cache.Entry{
			Decision:        string(decision.Outcome),
			Confidence:      decision.Confidence,
			Reasons:         decision.Reasons,
			Recommendations: decision.Recommendations,
			Method:          string(active.Method()),
		})
		return o.finish(ctx, base, decision, active.Method(), sanitized, start, 0)
	}

	if ctx.Err() != nil {
		return o.abandoned(ctx, base, active.Method(), start)
	}

	// Exactly one in-flight fallback: the pattern tier. When the pattern
	// tier is already active there is nothing left to fall back to.
	fallbacks := 0
	if active.Method() != o.pattern.Method() {
		fallbacks = 1
		o.logger.Warn("active tier failed in flight, falling back to pattern rules",
			"from", active.Method(),
			"trace_id", traceID,
			"error", err,
		)
		o.metrics.IncFallback(string(active.Method()), string(o.pattern.Method()))

		fallbackDraft := base
		fallbackDraft.EventType = ledger.EventFallbackTriggered
		fallbackDraft.Action = fmt.Sprintf("in-flight fallback %s->%s", active.Method(), o.pattern.Method())
		fallbackDraft.Method = o.pattern.Method()
		fallbackDraft.Status = ledger.StatusWarning
		fallbackDraft.ErrorType = "processing_failure"
		fallbackDraft.ErrorMessage = err.Error()
		fallbackDraft.FallbackTriggered = true
		fallbackDraft.FallbackReason = fmt.Sprintf("in-flight failure of %s", active.Method())
		if _, auditErr := o.ledger.Append(ctx, fallbackDraft); auditErr != nil {
			return Result{}, fmt.Errorf("audit in-flight fallback: %w", auditErr)
		}

		decision, err = o.pattern.Decide(ctx, sanitized.SanitizedText, level)
		if err == nil {
			return o.finish(ctx, base, decision, o.pattern.Method(), sanitized, start, fallbacks)
		}
		if ctx.Err() != nil {
			return o.abandoned(ctx, base, o.pattern.Method(), start)
		}
	}

	// Both the active mode and the pattern fallback failed: terminal
	// fail-safe. Reject with full confidence and audit the block.
	return o.emergencyBlock(ctx, base, err, sanitized, start, fallbacks)
}

func (o *Orchestrator) activeTier() Tier {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.active == nil {
		return o.pattern
	}
	return o.active
}

// finish writes the terminal MODEL_DECISION event and assembles the result.
func (o *Orchestrator) finish(ctx context.Context, base ledger.Draft, decision Decision, method ledger.ProcessingMethod, sanitized sanitize.Result, start time.Time, fallbacks int) (Result, error) {
	elapsed := o.now().Sub(start)

	status := ledger.StatusSuccess
	if decision.Outcome == OutcomeReject {
		status = ledger.StatusBlocked
	}

	draft := base
	draft.EventType = ledger.EventModelDecision
	draft.Action = fmt.Sprintf("decision %s (confidence %.2f)", decision.Outcome, decision.Confidence)
	draft.Method = method
	draft.Status = status
	draft.ProcessingTimeMs = elapsed.Milliseconds()
	draft.ModelUsed = decision.Model
	draft.TokensProcessed = decision.Tokens
	draft.FallbackTriggered = fallbacks > 0

	if _, err := o.ledger.Append(ctx, draft); err != nil {
		return Result{}, fmt.Errorf("audit decision: %w", err)
	}

	o.metrics.IncDecision(string(method), string(status))
	o.metrics.ObserveProcessLatency(elapsed)

	return Result{
		TraceID:            base.TraceID,
		Decision:           decision.Outcome,
		Confidence:         decision.Confidence,
		Reasons:            decision.Reasons,
		Recommendations:    decision.Recommendations,
		Method:             method,
		Sensitivity:        base.Sensitivity,
		RiskScore:          sanitized.RiskScore,
		TimingMs:           elapsed.Milliseconds(),
		FallbacksTriggered: fallbacks,
	}, nil
}

// emergencyBlock is the terminal fail-safe: decision reject, confidence 1.0,
// one EMERGENCY_BLOCK audit event. Never fail-open.
func (o *Orchestrator) emergencyBlock(ctx context.Context, base ledger.Draft, cause error, sanitized sanitize.Result, start time.Time, fallbacks int) (Result, error) {
	elapsed := o.now().Sub(start)

	draft := base
	draft.EventType = ledger.EventEmergencyBlock
	draft.Action = "emergency block"
	draft.Method = ledger.MethodEmergencyBlock
	draft.Status = ledger.StatusBlocked
	draft.ProcessingTimeMs = elapsed.Milliseconds()
	draft.ErrorType = "processing_failure"
	draft.ErrorMessage = cause.Error()
	draft.FallbackTriggered = true
	draft.FallbackReason = "all capability tiers failed"

	if _, err := o.ledger.Append(ctx, draft); err != nil {
		return Result{}, fmt.Errorf("audit emergency block: %w", err)
	}

	o.metrics.IncEmergencyBlock()
	o.metrics.IncDecision(string(ledger.MethodEmergencyBlock), string(ledger.StatusBlocked))
	o.metrics.ObserveProcessLatency(elapsed)

	return Result{
		TraceID:            base.TraceID,
		Decision:           OutcomeReject,
		Confidence:         1.0,
		Reasons:            []string{"processing unavailable"},
		Recommendations:    []string{"try again later"},
		Method:             ledger.MethodEmergencyBlock,
		Sensitivity:        base.Sensitivity,
		RiskScore:          sanitized.RiskScore,
		TimingMs:           elapsed.Milliseconds(),
		FallbacksTriggered: fallbacks,
	}, nil
}

// abandoned audits a cancelled request so cancellation never leaves a gap in
// the trail. The append runs on a detached context; the caller's deadline is
// already gone.
func (o *Orchestrator) abandoned(ctx context.Context, base ledger.Draft, method ledger.ProcessingMethod, start time.Time) (Result, error) {
	elapsed := o.now().Sub(start)

	draft := base
	draft.EventType = ledger.EventModelDecision
	draft.Action = "request abandoned"
	draft.Method = method
	draft.Status = ledger.StatusError
	draft.ProcessingTimeMs = elapsed.Milliseconds()
	draft.ErrorType = "timeout"
	draft.ErrorMessage = ctx.Err().Error()

	detached := context.WithoutCancel(ctx)
	if _, err := o.ledger.Append(detached, draft); err != nil {
		return Result{}, fmt.Errorf("audit abandoned request: %w", err)
	}

	o.metrics.IncDecision(string(method), string(ledger.StatusError))

	return Result{
		TraceID:     base.TraceID,
		Decision:    OutcomeReject,
		Confidence:  1.0,
		Reasons:     []string{"request cancelled before completion"},
		Method:      method,
		Sensitivity: base.Sensitivity,
		TimingMs:    elapsed.Milliseconds(),
	}, nil
}
