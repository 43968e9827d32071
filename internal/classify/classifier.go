// Package classify assigns a sensitivity level to raw text before any
// processing happens. The classifier is deliberately rule-based: it has no
// model dependency, so it cannot fail and cannot silently drift.
package classify

import (
	"regexp"
	"strings"

	"sentra/internal/ledger"
)

// Context carries caller-supplied hints that bias classification upward.
type Context struct {
	// CategoryHint is a free-form category from the calling application,
	// e.g. "mental-health" or "personality".
	CategoryHint string
}

// Tiers are checked highest first: a text matching both PUBLIC and
// CONFIDENTIAL patterns must classify CONFIDENTIAL. Sensitivity is never
// under-estimated.
var (
	// Financial instruments, identifiers, and money.
	cardPattern   = regexp.MustCompile(`\b(?:\d[ -]?){13,19}\b`)
	ibanPattern   = regexp.MustCompile(`(?i)\b[A-Z]{2}\d{2}[A-Z0-9]{10,30}\b`)
	amountPattern = regexp.MustCompile(`(?:€|\$|£|\bEUR\b|\bUSD\b)\s?\d+(?:[.,]\d{2})?`)
	// Nine-digit runs cover national identifiers such as the Dutch BSN.
	nationalIDPattern = regexp.MustCompile(`\b\d{9}\b`)

	medicalVocabulary = []string{
		"diagnosis", "diagnose", "medication", "medicatie", "prescription",
		"suicidal", "suïcidaal", "self-harm", "zelfbeschadiging", "crisis",
		"therapist", "therapeut", "psychiatrist", "psychiater",
	}

	sensitiveVocabulary = []string{
		"relationship", "relatie", "divorce", "scheiding", "family", "familie",
		"depression", "depressie", "anxiety", "angst", "trauma", "grief",
		"rouw", "burnout", "lonely", "eenzaam",
	}

	personalVocabulary = []string{
		"introvert", "extravert", "extrovert", "personality", "persoonlijkheid",
		"mbti", "enneagram", "big five",
	}

	sensitiveHints = map[string]bool{
		"mental-health": true,
		"therapy":       true,
		"coaching":      true,
	}

	personalHints = map[string]bool{
		"personality":    true,
		"personal-topic": true,
		"profile":        true,
	}
)

// Classifier tags text with a sensitivity level. Stateless and safe for
// concurrent use.
type Classifier struct{}

// New creates a Classifier.
func New() *Classifier {
	return &Classifier{}
}

// Classify returns the sensitivity level for the text. Deterministic:
// identical input always yields the identical level.
func (c *Classifier) Classify(text string, cctx Context) ledger.SensitivityLevel {
	lower := strings.ToLower(text)

	if cardPattern.MatchString(text) ||
		ibanPattern.MatchString(text) ||
		amountPattern.MatchString(text) ||
		nationalIDPattern.MatchString(text) ||
		containsAny(lower, medicalVocabulary) {
		return ledger.SensitivityConfidential
	}

	if containsAny(lower, sensitiveVocabulary) || sensitiveHints[cctx.CategoryHint] {
		return ledger.SensitivitySensitive
	}

	if containsAny(lower, personalVocabulary) || personalHints[cctx.CategoryHint] {
		return ledger.SensitivityPersonal
	}

	return ledger.SensitivityPublic
}

func containsAny(lower string, vocabulary []string) bool {
	for _, term := range vocabulary {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}
