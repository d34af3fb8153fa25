package llm

import "errors"

// ErrUnavailable is the single failure kind surfaced for any model
// invocation problem: the daemon cannot be reached, the call timed out,
// or the reply was unusable. Callers treat it as recoverable; the current
// turn fails and stored history stays intact for retry.
var ErrUnavailable = errors.New("model unavailable")
