package model

import "errors"

// Sentinel error kinds returned by core operations. Callers should test with
// errors.Is / errors.As rather than comparing error strings.
var (
	// ErrNotFound indicates a transcript or row is missing; upstream chooses
	// to skip it.
	ErrNotFound = errors.New("recap: not found")

	// ErrMalformed indicates a parse failure with zero recoverable content.
	ErrMalformed = errors.New("recap: malformed input")

	// ErrConflict indicates a key collision at insert time, handled by an
	// upsert rule rather than surfaced to the caller.
	ErrConflict = errors.New("recap: conflict")

	// ErrBackpressure indicates an LLM quota exhaustion or timeout; callers
	// degrade to the rule-based path.
	ErrBackpressure = errors.New("recap: backpressure")

	// ErrAuthExpired indicates a stale OAuth token; the quota provider
	// becomes unavailable until a new token is stored.
	ErrAuthExpired = errors.New("recap: auth expired")

	// ErrFatal indicates a store integrity violation or unreadable database
	// file. The caller aborts the pass.
	ErrFatal = errors.New("recap: fatal")
)
