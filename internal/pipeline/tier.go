package pipeline

import (
	"context"
	"strings"

	"sentra/internal/ledger"
)

// Outcome is the decision a tier reaches about a piece of text.
type Outcome string

const (
	OutcomeAllow  Outcome = "allow"
	OutcomeFlag   Outcome = "flag"
	OutcomeReject Outcome = "reject"
)

// Decision is the result of one tier evaluating sanitized text.
type Decision struct {
	Outcome         Outcome
	Confidence      float64
	Reasons         []string
	Recommendations []string
	Model           string
	Tokens          int
}

// Tier is one decision-making strategy in the capability cascade. Tiers are
// a closed set; new tiers implement this interface and slot into the cascade
// without touching orchestration.
type Tier interface {
	// Method identifies the tier in audit events.
	Method() ledger.ProcessingMethod

	// Init prepares the tier. A failure here triggers fallback to the
	// next tier at startup; it is not fatal to the process.
	Init(ctx context.Context) error

	// Decide evaluates sanitized text. An error triggers the in-flight
	// fallback path.
	Decide(ctx context.Context, text string, level ledger.SensitivityLevel) (Decision, error)
}

// Capability is the black-box inference engine behind a capability tier.
// The actual model runtime lives outside this subsystem; the pipeline only
// cares that it can initialize and infer.
type Capability interface {
	Init(ctx context.Context) error
	Infer(ctx context.Context, text string, level ledger.SensitivityLevel) (Decision, error)
}

// CapabilityTier adapts a Capability to the Tier interface.
type CapabilityTier struct {
	method ledger.ProcessingMethod
	cap    Capability
}

// NewCapabilityTier wraps a capability engine as a pipeline tier.
func NewCapabilityTier(method ledger.ProcessingMethod, cap Capability) *CapabilityTier {
	return &CapabilityTier{method: method, cap: cap}
}

func (t *CapabilityTier) Method() ledger.ProcessingMethod { return t.method }

func (t *CapabilityTier) Init(ctx context.Context) error { return t.cap.Init(ctx) }

func (t *CapabilityTier) Decide(ctx context.Context, text string, level ledger.SensitivityLevel) (Decision, error) {
	return t.cap.Infer(ctx, text, level)
}

// PatternTier is the rule-based last resort. It has no dependencies, cannot
// fail to initialize, and always reaches a decision.
type PatternTier struct {
	blocklist []string
	flaglist  []string
}

// NewPatternTier creates the pattern tier with its default vocabularies.
func NewPatternTier() *PatternTier {
	return &PatternTier{
		blocklist: []string{
			"kill yourself", "kys", "doxx", "swat",
		},
		flaglist: []string{
			"hate", "abuse", "harass", "threat", "stupid", "idiot",
		},
	}
}

func (t *PatternTier) Method() ledger.ProcessingMethod { return ledger.MethodPatternFallback }

func (t *PatternTier) Init(context.Context) error { return nil }

// Decide applies keyword rules. Confidence is deliberately modest: the
// pattern tier exists to keep decisions flowing, not to be clever.
func (t *PatternTier) Decide(_ context.Context, text string, level ledger.SensitivityLevel) (Decision, error) {
	lower := strings.ToLower(text)

	for _, term := range t.blocklist {
		if strings.Contains(lower, term) {
			return Decision{
				Outcome:    OutcomeReject,
				Confidence: 0.9,
				Reasons:    []string{"matched blocklist pattern"},
				Model:      "pattern-rules-v1",
			}, nil
		}
	}

	for _, term := range t.flaglist {
		if strings.Contains(lower, term) {
			return Decision{
				Outcome:         OutcomeFlag,
				Confidence:      0.7,
				Reasons:         []string{"matched review pattern"},
				Recommendations: []string{"queue for human review"},
				Model:           "pattern-rules-v1",
			}, nil
		}
	}

	d := Decision{
		Outcome:    OutcomeAllow,
		Confidence: 0.6,
		Model:      "pattern-rules-v1",
	}
	// Higher-sensitivity content gets a review nudge even when allowed.
	if level == ledger.SensitivityConfidential {
		d.Recommendations = []string{"consider human review for confidential content"}
	}
	return d, nil
}
