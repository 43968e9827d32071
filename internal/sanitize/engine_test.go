package sanitize_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentra/internal/ledger"
	"sentra/internal/sanitize"
)

func TestSanitizeConfidentialFinancial(t *testing.T) {
	e := sanitize.New()

	res := e.Sanitize("Mijn IBAN is NL91ABNA0417164300 en kaart 4111111111111111", ledger.SensitivityConfidential)

	assert.NotContains(t, res.SanitizedText, "NL91ABNA0417164300")
	assert.NotContains(t, res.SanitizedText, "4111111111111111")
	assert.Contains(t, res.SanitizedText, sanitize.TokenIBAN)
	assert.Contains(t, res.SanitizedText, sanitize.TokenCreditCard)
	assert.Contains(t, res.RemovedElements, "iban")
	assert.Contains(t, res.RemovedElements, "creditcard")
	assert.NotEmpty(t, res.AuditTrail)
	// Confidential base plus the confidential-hit modifier.
	assert.InDelta(t, 0.95, res.RiskScore, 0.001)
}

// Rule sets grow strictly with sensitivity: each level redacts everything the
// levels below it redact.
func TestSanitizeSupersetGrowth(t *testing.T) {
	e := sanitize.New()
	text := "mail me at jan@example.com of bel 06 1234 5678"

	public := e.Sanitize(text, ledger.SensitivityPublic)
	assert.Contains(t, public.SanitizedText, "jan@example.com")

	personal := e.Sanitize(text, ledger.SensitivityPersonal)
	assert.NotContains(t, personal.SanitizedText, "jan@example.com")
	assert.Contains(t, personal.SanitizedText, "06 1234 5678")

	sensitive := e.Sanitize(text, ledger.SensitivitySensitive)
	assert.NotContains(t, sensitive.SanitizedText, "jan@example.com")
	assert.NotContains(t, sensitive.SanitizedText, "06 1234 5678")
	assert.Contains(t, sensitive.RemovedElements, "email")
	assert.Contains(t, sensitive.RemovedElements, "phone")

	confidential := e.Sanitize(text, ledger.SensitivityConfidential)
	assert.NotContains(t, confidential.SanitizedText, "jan@example.com")
	assert.NotContains(t, confidential.SanitizedText, "06 1234 5678")
}

func TestSanitizePostcode(t *testing.T) {
	e := sanitize.New()
	res := e.Sanitize("ik woon op 1234 AB in Amsterdam", ledger.SensitivitySensitive)
	assert.Contains(t, res.SanitizedText, sanitize.TokenPostcode)
	assert.NotContains(t, res.SanitizedText, "1234 AB")
}

func TestSanitizeCollapsesSpam(t *testing.T) {
	e := sanitize.New()

	res := e.Sanitize("this is sooooooo cool", ledger.SensitivityPublic)
	assert.Equal(t, "this is sooo cool", res.SanitizedText)
	assert.Contains(t, res.RemovedElements, "spam")

	// Runs below the threshold stay untouched.
	res = e.Sanitize("sooo cool", ledger.SensitivityPublic)
	assert.Equal(t, "sooo cool", res.SanitizedText)
	assert.NotContains(t, res.RemovedElements, "spam")
}

func TestSanitizeConfidentialTerms(t *testing.T) {
	e := sanitize.New(sanitize.WithConfidentialTerms([]string{"Project Vesta"}))

	res := e.Sanitize("status update on project vesta attached", ledger.SensitivityConfidential)
	assert.NotContains(t, res.SanitizedText, "project vesta")
	assert.Contains(t, res.SanitizedText, sanitize.TokenRedacted)
	assert.Contains(t, res.RemovedElements, "term")

	// Terms only apply at the CONFIDENTIAL level.
	res = e.Sanitize("status update on project vesta attached", ledger.SensitivitySensitive)
	assert.Contains(t, res.SanitizedText, "project vesta")
}

func TestSanitizePure(t *testing.T) {
	e := sanitize.New()
	text := "Mijn IBAN is NL91ABNA0417164300"

	first := e.Sanitize(text, ledger.SensitivityConfidential)
	second := e.Sanitize(text, ledger.SensitivityConfidential)
	assert.Equal(t, first, second)
}

func TestRiskScore(t *testing.T) {
	e := sanitize.New()

	tests := []struct {
		name  string
		text  string
		level ledger.SensitivityLevel
		want  float64
	}{
		{"public baseline", "a perfectly ordinary sentence", ledger.SensitivityPublic, 0.2},
		{"public short", "hi", ledger.SensitivityPublic, 0.3},
		{"personal baseline", "my email is nowhere here today", ledger.SensitivityPersonal, 0.4},
		{"sensitive baseline", "a long enough sensitive message", ledger.SensitivitySensitive, 0.6},
		{"confidential no hit", "a confidential level message here", ledger.SensitivityConfidential, 0.8},
		{"confidential with hit", "kaartnummer 4111111111111111 hier en nog wat tekst", ledger.SensitivityConfidential, 0.95},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := e.Sanitize(tt.text, tt.level)
			assert.InDelta(t, tt.want, res.RiskScore, 0.001)
		})
	}
}

func TestRiskScoreClamped(t *testing.T) {
	e := sanitize.New()
	// Confidential hit plus a tiny remainder pushes past 1.0 before clamping.
	res := e.Sanitize("€42,00", ledger.SensitivityConfidential)
	require.LessOrEqual(t, res.RiskScore, 1.0)
	assert.InDelta(t, 1.0, res.RiskScore, 0.001)
}
