// Package sanitize redacts privacy-bearing elements from text before it
// reaches any decision tier. Rule sets grow strictly with sensitivity: every
// level applies all rules of the levels below it plus its own.
//
// Sanitize is pure: same text and level in, same result out, no side effects.
// Persisting an audit event that references the result is the caller's job.
package sanitize

import (
	"fmt"
	"regexp"
	"strings"

	"sentra/internal/ledger"
	"sentra/pkg/strutil"
)

// Result describes one sanitization pass. AuditTrail holds human-readable
// step descriptions for audit metadata; it never contains raw matches.
type Result struct {
	SanitizedText   string
	Sensitivity     ledger.SensitivityLevel
	RemovedElements []string
	RiskScore       float64
	AuditTrail      []string
}

// Placeholder tokens inserted in place of redacted content.
const (
	TokenEmail      = "[EMAIL]"
	TokenPhone      = "[PHONE]"
	TokenPostcode   = "[POSTCODE]"
	TokenCreditCard = "[CREDITCARD]"
	TokenIBAN       = "[IBAN]"
	TokenAmount     = "[AMOUNT]"
	TokenNationalID = "[NATIONALID]"
	TokenRedacted   = "[REDACTED]"
)

// rule is one pattern-to-placeholder redaction.
type rule struct {
	tag     string
	token   string
	pattern *regexp.Regexp
	// confidential placeholders add to the risk score.
	confidential bool
}

// Confidential patterns run before weaker ones so a 16-digit card number is
// tagged as a card, not as a phone number.
var (
	confidentialRules = []rule{
		{tag: "creditcard", token: TokenCreditCard, confidential: true,
			pattern: regexp.MustCompile(`\b(?:\d[ -]?){13,19}\b`)},
		{tag: "iban", token: TokenIBAN, confidential: true,
			pattern: regexp.MustCompile(`(?i)\b[A-Z]{2}\d{2}[A-Z0-9]{10,30}\b`)},
		{tag: "amount", token: TokenAmount, confidential: true,
			pattern: regexp.MustCompile(`(?:€|\$|£|\bEUR\b|\bUSD\b)\s?\d+(?:[.,]\d{2})?`)},
		{tag: "nationalid", token: TokenNationalID, confidential: true,
			pattern: regexp.MustCompile(`\b\d{9}\b`)},
	}

	sensitiveRules = []rule{
		{tag: "phone", token: TokenPhone,
			pattern: regexp.MustCompile(`(?:\+|00)?\d[\d\s\-()]{7,}\d`)},
		{tag: "postcode", token: TokenPostcode,
			pattern: regexp.MustCompile(`\b\d{4}\s?[A-Za-z]{2}\b`)},
	}

	personalRules = []rule{
		{tag: "email", token: TokenEmail,
			pattern: regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)},
	}
)

// Engine applies tier-appropriate redactions. Safe for concurrent use.
type Engine struct {
	confidentialTerms []string
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfidentialTerms sets the configurable term list redacted at the
// CONFIDENTIAL level. Terms are matched case-insensitively.
func WithConfidentialTerms(terms []string) Option {
	return func(e *Engine) {
		e.confidentialTerms = strutil.NormalizeTerms(terms)
	}
}

// New creates a sanitization engine.
func New(opts ...Option) *Engine {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Sanitize redacts the text according to the sensitivity level and returns
// the result with its risk score and audit trail.
func (e *Engine) Sanitize(text string, level ledger.SensitivityLevel) Result {
	res := Result{
		SanitizedText: text,
		Sensitivity:   level,
	}

	confidentialHit := false
	apply := func(rules []rule) {
		for _, r := range rules {
			if !r.pattern.MatchString(res.SanitizedText) {
				continue
			}
			res.SanitizedText = r.pattern.ReplaceAllString(res.SanitizedText, r.token)
			res.RemovedElements = append(res.RemovedElements, r.tag)
			res.AuditTrail = append(res.AuditTrail, fmt.Sprintf("redacted %s as %s", r.tag, r.token))
			if r.confidential {
				confidentialHit = true
			}
		}
	}

	// Strongest patterns first, then down the tiers that apply.
	switch level {
	case ledger.SensitivityConfidential:
		apply(confidentialRules)
		if e.redactTerms(&res) {
			confidentialHit = true
		}
		apply(sensitiveRules)
		apply(personalRules)
	case ledger.SensitivitySensitive:
		apply(sensitiveRules)
		apply(personalRules)
	case ledger.SensitivityPersonal:
		apply(personalRules)
	}

	// Spam collapse applies at every level, PUBLIC included.
	if collapsed, hit := collapseRepeats(res.SanitizedText, 5); hit {
		res.SanitizedText = collapsed
		res.RemovedElements = append(res.RemovedElements, "spam")
		res.AuditTrail = append(res.AuditTrail, "collapsed repeated characters")
	}

	res.RemovedElements = strutil.DedupeAndTrim(res.RemovedElements)
	res.RiskScore = riskScore(level, confidentialHit, res.SanitizedText)
	return res
}

// redactTerms replaces configured confidential terms with [REDACTED].
// Reports whether anything matched.
func (e *Engine) redactTerms(res *Result) bool {
	if len(e.confidentialTerms) == 0 {
		return false
	}
	hit := false
	for _, term := range e.confidentialTerms {
		re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(term) + `\b`)
		if err != nil {
			continue
		}
		if !re.MatchString(res.SanitizedText) {
			continue
		}
		res.SanitizedText = re.ReplaceAllString(res.SanitizedText, TokenRedacted)
		res.RemovedElements = append(res.RemovedElements, "term")
		res.AuditTrail = append(res.AuditTrail, "redacted confidential term")
		hit = true
	}
	return hit
}

// collapseRepeats shortens runs of the same rune of length >= threshold down
// to three repeats. RE2 has no backreferences, so this is done by hand.
func collapseRepeats(text string, threshold int) (string, bool) {
	var (
		b        strings.Builder
		prev     rune
		runLen   int
		modified bool
	)
	flush := func() {
		n := runLen
		if n >= threshold {
			n = 3
			modified = true
		}
		for i := 0; i < n; i++ {
			b.WriteRune(prev)
		}
	}
	for i, r := range text {
		if i > 0 && r == prev {
			runLen++
			continue
		}
		if i > 0 {
			flush()
		}
		prev = r
		runLen = 1
	}
	if len(text) > 0 {
		flush()
	}
	if !modified {
		return text, false
	}
	return b.String(), true
}

// riskScore combines the per-level base with redaction outcome modifiers,
// clamped to [0,1].
func riskScore(level ledger.SensitivityLevel, confidentialHit bool, sanitized string) float64 {
	var score float64
	switch level {
	case ledger.SensitivityPublic:
		score = 0.2
	case ledger.SensitivityPersonal:
		score = 0.4
	case ledger.SensitivitySensitive:
		score = 0.6
	case ledger.SensitivityConfidential:
		score = 0.8
	}
	if confidentialHit {
		score += 0.15
	}
	if len(sanitized) < 10 {
		score += 0.1
	}
	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}
	return score
}
