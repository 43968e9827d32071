package classify_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"sentra/internal/classify"
	"sentra/internal/ledger"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		text string
		hint string
		want ledger.SensitivityLevel
	}{
		{"plain text", "what a lovely day outside", "", ledger.SensitivityPublic},
		{"card number", "my card is 4111 1111 1111 1111", "", ledger.SensitivityConfidential},
		{"iban", "betaal naar NL91ABNA0417164300 alsjeblieft", "", ledger.SensitivityConfidential},
		{"amount euro", "ik heb €1500,00 overgemaakt", "", ledger.SensitivityConfidential},
		{"amount usd word", "transferred USD 200 yesterday", "", ledger.SensitivityConfidential},
		{"national id", "mijn nummer is 123456789", "", ledger.SensitivityConfidential},
		{"medical term", "my therapist suggested a new medication", "", ledger.SensitivityConfidential},
		{"medical dutch", "de psychiater heeft een diagnose gesteld", "", ledger.SensitivityConfidential},
		{"relationship", "my divorce has been hard on the family", "", ledger.SensitivitySensitive},
		{"emotional dutch", "ik voel me zo eenzaam de laatste tijd", "", ledger.SensitivitySensitive},
		{"personality", "as an introvert I prefer small groups", "", ledger.SensitivityPersonal},
		{"mbti", "I got MBTI type INTJ on the test", "", ledger.SensitivityPersonal},
		{"sensitive hint on plain text", "how was your week", "mental-health", ledger.SensitivitySensitive},
		{"personal hint on plain text", "tell me more", "personality", ledger.SensitivityPersonal},
		{"unknown hint stays public", "tell me more", "weather", ledger.SensitivityPublic},
	}

	c := classify.New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.text, classify.Context{CategoryHint: tt.hint})
			assert.Equal(t, tt.want, got)
		})
	}
}

// Higher tiers win when multiple tiers match.
func TestClassifyHighestTierWins(t *testing.T) {
	c := classify.New()

	text := "my therapist knows I am an introvert going through a divorce"
	assert.Equal(t, ledger.SensitivityConfidential, c.Classify(text, classify.Context{}))

	// A weak hint never downgrades a strong content match.
	assert.Equal(t, ledger.SensitivityConfidential, c.Classify(text, classify.Context{CategoryHint: "personality"}))
}

func TestClassifyDeterministic(t *testing.T) {
	c := classify.New()
	text := "my card is 4111111111111111"
	first := c.Classify(text, classify.Context{})
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, c.Classify(text, classify.Context{}))
	}
}
