package ai

import "errors"

// Sentinel errors surfaced by the completion gateway. Callers classify with
// errors.Is and translate to user-facing text at the pipeline boundary.
var (
	// ErrUnavailable means no AI client is configured (missing API key or
	// failed initialization).
	ErrUnavailable = errors.New("ai service unavailable")

	// ErrRateLimited means the upstream API kept throttling after all retries.
	ErrRateLimited = errors.New("ai rate limit exceeded")

	// ErrContentBlocked means the safety filter refused to generate. The
	// wrapping error carries the block reason. Never retried.
	ErrContentBlocked = errors.New("ai content blocked")

	// ErrInvalidResponse means the model returned something unusable: no
	// candidates, empty parts, or output over the platform length ceiling.
	ErrInvalidResponse = errors.New("ai invalid response")

	// ErrTransport means a network or API fault not covered above. The
	// gateway does not retry these; that is the caller's decision.
	ErrTransport = errors.New("ai transport error")
)
