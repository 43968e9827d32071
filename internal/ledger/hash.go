package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// hashPrefix marks the digest algorithm so stored hashes stay self-describing
// if the algorithm ever has to change.
const hashPrefix = "sha256:"

// computeEventHash calculates the chain hash for an event. The input set is
// fixed: previous hash plus the nine identity and fingerprint fields, joined
// with "|" so field boundaries cannot be forged by concatenation.
//
//	SHA-256(prev | traceID | userID | eventType | action | method | level | ts | inHash | outHash)
//
// Timestamps are rendered as RFC3339Nano in UTC so the hash is independent of
// the zone the event was recorded in.
func computeEventHash(prev string, e Event) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s|%s|%s|%s|%s|%s|%s",
		prev,
		e.TraceID,
		e.UserID,
		e.EventType,
		e.Action,
		e.Method,
		e.Sensitivity,
		e.Timestamp.UTC().Format(time.RFC3339Nano),
		e.InputHash,
		e.OutputHash,
	)
	return hashPrefix + hex.EncodeToString(h.Sum(nil))
}

// verifyEventHash recomputes an event's hash from its stored fields and
// reports whether it matches the stored value.
func verifyEventHash(e Event) bool {
	return computeEventHash(e.PreviousHash, e) == e.EventHash
}

// Fingerprint returns the content fingerprint persisted in place of raw text.
// Callers hash the text before it reaches the ledger; the ledger itself never
// sees unredacted content.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hashPrefix + hex.EncodeToString(sum[:])
}
