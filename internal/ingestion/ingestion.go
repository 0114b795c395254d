// Package ingestion implements the external transport boundary a Channel
// Group hands prepared batches to: an Ingestion sends a batch, reports
// success/failure through a handler, and notifies its own delegates when
// the transport itself pauses, resumes, or hits a condition severe enough
// that a subscribed Channel Group disables (with wipe) every one of its units.
package ingestion

import (
	"sync"
	"time"

	"github.com/gpt-load-telemetry/channel-sdk/internal/models"
)

// SendResult is passed to the handler given to Send. Err is nil on success.
type SendResult struct {
	BatchID    string
	StatusCode int
	Body       []byte
	Err        error
}

// Delegate receives lifecycle notifications from an Ingestion. A Channel
// Group registers itself (or a thin adapter) to translate these into its
// own pause/resume/disable-with-wipe handling.
type Delegate interface {
	IngestionDidPause(ing Ingestion)
	IngestionDidResume(ing Ingestion)
	IngestionDidReceiveFatalError(ing Ingestion, err error)
}

// Ingestion is the external send boundary. Send must not block the caller
// for the duration of the network round trip; it reports completion via
// handler, which may be invoked from a different goroutine than the
// caller's.
type Ingestion interface {
	IsReadyToSend() bool
	Send(batch *models.PendingBatch, token *string, handler func(SendResult))
	AddDelegate(d Delegate)
	RemoveDelegate(d Delegate)
}

// classification is a three-way split of a completed send
// attempt, grounded on internal/utils.CategorizeError's retry/no-retry
// split and extended with the fatal tier for conditions no retry can fix.
type classification int

const (
	classifyNonRecoverable classification = iota
	classifyRecoverable
	classifyFatal
)

func classifyHTTPStatus(statusCode int) classification {
	switch {
	case statusCode == 401 || statusCode == 403:
		// The token-exchange layer owns re-authentication; treat as
		// recoverable so the transport pauses and retries once a fresh
		// token is available, rather than discarding the batch.
		return classifyRecoverable
	case statusCode >= 500:
		return classifyRecoverable
	case statusCode >= 400:
		return classifyNonRecoverable
	default:
		return classifyNonRecoverable
	}
}

type delegateSet struct {
	mu        sync.Mutex
	delegates []Delegate
}

func (s *delegateSet) add(d Delegate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delegates = append(s.delegates, d)
}

func (s *delegateSet) remove(d Delegate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.delegates {
		if existing == d {
			s.delegates = append(s.delegates[:i], s.delegates[i+1:]...)
			return
		}
	}
}

// snapshot returns a copy so dispatch never holds the lock while calling
// into delegate code, matching the Channel Group's own dispatch discipline.
func (s *delegateSet) snapshot() []Delegate {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Delegate, len(s.delegates))
	copy(out, s.delegates)
	return out
}

const (
	backoffBase     = 500 * time.Millisecond
	backoffMaxJitter = 500 * time.Millisecond
	backoffMaxDelay  = 30 * time.Second
	backoffMaxSteps  = 6
)

// jitteredBackoff returns an exponentially growing delay with added jitter,
// the same shape as a typical executeWithRetry/cron-checker retry
// delays, capped at backoffMaxDelay.
func jitteredBackoff(attempt int, jitter func(max time.Duration) time.Duration) time.Duration {
	if attempt > backoffMaxSteps {
		attempt = backoffMaxSteps
	}
	delay := backoffBase * time.Duration(uint64(1)<<uint(attempt))
	if delay > backoffMaxDelay {
		delay = backoffMaxDelay
	}
	return delay + jitter(backoffMaxJitter)
}
