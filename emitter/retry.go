package emitter

import "time"

// Sleeper abstracts blocking waits so tests can run backoff schedules instantly
type Sleeper interface {
	Sleep(d time.Duration)
}

// realSleeper is the production Sleeper
type realSleeper struct{}

func (realSleeper) Sleep(d time.Duration) { time.Sleep(d) }

// Backoff is the fixed retry schedule applied to every send: a first
// attempt plus retries separated by exponentially growing waits.
type Backoff struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultBackoff retries 5 times total, waiting 1s, 2s, 4s, 8s, 16s
var DefaultBackoff = Backoff{MaxAttempts: 5, BaseDelay: 1 * time.Second}

// Delay returns the wait before the given retry (attempt is 1-based; the
// first retry is attempt 2)
func (b Backoff) Delay(attempt int) time.Duration {
	d := b.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	return d
}

// retry runs fn up to MaxAttempts times, sleeping the backoff schedule
// between attempts. It returns nil on the first success.
func retry(b Backoff, sleeper Sleeper, fn func() error) error {
	var err error
	for attempt := 1; attempt <= b.MaxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if attempt < b.MaxAttempts {
			sleeper.Sleep(b.Delay(attempt))
		}
	}
	return err
}
