// Package watch holds the per-session dashboard state: the run-down tracker,
// the alert evaluator, and the session that owns them.
package watch

import (
	"time"

	"github.com/shopspring/decimal"
)

// RunDownTracker records, per ticker, the moment its price first dropped below
// the reference level. A ticker is either above its reference (no entry) or
// below since some instant. Recovery at or above the reference clears the entry
// immediately, so the next breach starts a fresh episode.
type RunDownTracker struct {
	since map[string]time.Time
}

// NewRunDownTracker returns an empty tracker; no ticker has state until its
// first observation.
func NewRunDownTracker() *RunDownTracker {
	return &RunDownTracker{since: make(map[string]time.Time)}
}

// Observe records one price observation at now and returns the elapsed whole
// minutes the ticker has stayed below its reference. A price at or above the
// reference resets the episode and returns zero.
func (t *RunDownTracker) Observe(ticker string, last, reference decimal.Decimal, now time.Time) int {
	if last.Cmp(reference) >= 0 {
		delete(t.since, ticker)
		return 0
	}

	start, ok := t.since[ticker]
	if !ok {
		t.since[ticker] = now
		return 0
	}
	return int(now.Sub(start).Minutes())
}

// Since reports the breach start for a ticker, if it is currently below its
// reference.
func (t *RunDownTracker) Since(ticker string) (time.Time, bool) {
	start, ok := t.since[ticker]
	return start, ok
}

// Reset clears all episodes.
func (t *RunDownTracker) Reset() {
	t.since = make(map[string]time.Time)
}
