// Package errs contains sentinel errors used across pipeline stages for stable error mapping.
package errs

import "errors"

// Cycle-level sentinels. The orchestrator decides retry behaviour by
// errors.Is against these.
var (
	// ErrBadCredentials indicates the vendor rejected the configured
	// credentials. Non-retryable: the connector fails fast.
	ErrBadCredentials = errors.New("bad credentials")

	// ErrTransport indicates a transient network or vendor-side failure.
	// Always retryable with backoff.
	ErrTransport = errors.New("transport failure")

	// ErrDecryption indicates the archive blob could not be decrypted
	// (bad key, corrupted payload, unknown format version). Non-retryable
	// for that blob; the cycle is treated as a skipped poll.
	ErrDecryption = errors.New("decryption failed")

	// ErrSubmission indicates the downstream store rejected the treatment
	// batch. Retryable at the cycle level.
	ErrSubmission = errors.New("submission rejected")
)

// Retryable reports whether the orchestrator should back off and try
// again on the next interval instead of giving up.
func Retryable(err error) bool {
	return err != nil && !errors.Is(err, ErrBadCredentials)
}
