package ledger

import (
	"fmt"
	"strings"
)

// ValidationError rejects a malformed draft before anything is persisted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid audit draft: %s %s", e.Field, e.Reason)
}

// ChainBreak describes one broken link found by chain validation.
type ChainBreak struct {
	Position int64
	Reason   string
}

func (b ChainBreak) String() string {
	return fmt.Sprintf("position %d: %s", b.Position, b.Reason)
}

// ChainIntegrityError reports every break found in a stream. Validation never
// repairs a chain; a broken link means the record is no longer trustworthy
// and only an operator can decide what to do with it.
type ChainIntegrityError struct {
	StreamID string
	Breaks   []ChainBreak
}

func (e *ChainIntegrityError) Error() string {
	parts := make([]string, len(e.Breaks))
	for i, b := range e.Breaks {
		parts[i] = b.String()
	}
	return fmt.Sprintf("chain integrity violated for stream %s: %s", e.StreamID, strings.Join(parts, "; "))
}
