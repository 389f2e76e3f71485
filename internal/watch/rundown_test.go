package watch

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestRunDownEpisode(t *testing.T) {
	tracker := NewRunDownTracker()
	reference := dec("100")
	t0 := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

	// Sequence: below, below, recover, below again at t=0,5,12,20 minutes.
	if got := tracker.Observe("X", dec("99"), reference, t0); got != 0 {
		t.Errorf("t=0: elapsed = %d, want 0", got)
	}
	if got := tracker.Observe("X", dec("99"), reference, t0.Add(5*time.Minute)); got != 5 {
		t.Errorf("t=5: elapsed = %d, want 5", got)
	}
	if since, ok := tracker.Since("X"); !ok || !since.Equal(t0) {
		t.Errorf("t=5: since = %v, %v, want %v, true", since, ok, t0)
	}

	// Recovery at t=12 clears the episode immediately.
	if got := tracker.Observe("X", dec("101"), reference, t0.Add(12*time.Minute)); got != 0 {
		t.Errorf("t=12: elapsed = %d, want 0", got)
	}
	if _, ok := tracker.Since("X"); ok {
		t.Error("t=12: episode should be cleared after recovery")
	}

	// A new breach at t=20 starts a fresh episode.
	if got := tracker.Observe("X", dec("99"), reference, t0.Add(20*time.Minute)); got != 0 {
		t.Errorf("t=20: elapsed = %d, want 0", got)
	}
	if since, ok := tracker.Since("X"); !ok || !since.Equal(t0.Add(20*time.Minute)) {
		t.Errorf("t=20: since = %v, %v, want fresh start", since, ok)
	}
}

func TestRunDownAtReferenceIsAbove(t *testing.T) {
	tracker := NewRunDownTracker()
	now := time.Now()

	tracker.Observe("X", dec("99"), dec("100"), now)
	// Exactly at the reference counts as recovered.
	tracker.Observe("X", dec("100"), dec("100"), now.Add(time.Minute))
	if _, ok := tracker.Since("X"); ok {
		t.Error("price at reference should clear the episode")
	}
}

func TestRunDownElapsedFloorsToMinutes(t *testing.T) {
	tracker := NewRunDownTracker()
	reference := dec("100")
	t0 := time.Now()

	tracker.Observe("X", dec("99"), reference, t0)
	if got := tracker.Observe("X", dec("99"), reference, t0.Add(7*time.Minute+59*time.Second)); got != 7 {
		t.Errorf("elapsed = %d, want 7", got)
	}
}

func TestRunDownTracksTickersIndependently(t *testing.T) {
	tracker := NewRunDownTracker()
	reference := dec("100")
	t0 := time.Now()

	tracker.Observe("A", dec("99"), reference, t0)
	tracker.Observe("B", dec("101"), reference, t0)

	if _, ok := tracker.Since("A"); !ok {
		t.Error("A should be in a breach episode")
	}
	if _, ok := tracker.Since("B"); ok {
		t.Error("B should not be in a breach episode")
	}
	// C has never been observed.
	if _, ok := tracker.Since("C"); ok {
		t.Error("unobserved ticker should have no state")
	}
}
