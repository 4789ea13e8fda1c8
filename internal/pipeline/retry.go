package pipeline

import (
	"math/rand/v2"
	"time"

	"github.com/dgallion1/docextract/internal/history"
)

// IsRetryable checks if a ledger error is worth retrying.
func IsRetryable(err error) bool {
	return history.IsBusy(err)
}

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * 100 * time.Millisecond
	if base > 5*time.Second {
		base = 5 * time.Second
	}
	jitter := time.Duration(rand.Int64N(int64(base) / 2))
	return base + jitter
}

const MaxRetries = 3
