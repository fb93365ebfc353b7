package engine

import "time"

// PublishTimer tracks the wait deadline for publishing at the current height.
// There is exactly one deadline; Reset replaces it.
type PublishTimer struct {
	start time.Time
	wait  time.Duration
}

// NewPublishTimer creates a timer whose deadline is wait after now
func NewPublishTimer(now time.Time, wait time.Duration) *PublishTimer {
	return &PublishTimer{start: now, wait: wait}
}

// Reset starts a new wait period at now
func (pt *PublishTimer) Reset(now time.Time, wait time.Duration) {
	pt.start = now
	pt.wait = wait
}

// Expired returns true once strictly more than the wait has elapsed since the last reset
func (pt *PublishTimer) Expired(now time.Time) bool {
	return now.Sub(pt.start) > pt.wait
}

// Wait returns the current wait duration
func (pt *PublishTimer) Wait() time.Duration {
	return pt.wait
}

// Remaining returns the time left until the deadline, or zero once it has passed
func (pt *PublishTimer) Remaining(now time.Time) time.Duration {
	left := pt.wait - now.Sub(pt.start)
	if left < 0 {
		return 0
	}
	return left
}
