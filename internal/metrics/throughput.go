// Package metrics estimates output byte rates over sliding windows.
package metrics

import (
	"time"

	timecache "github.com/agilira/go-timecache"
)

const retention = 15 * time.Minute

type sample struct {
	at    time.Time
	bytes int
}

// Tracker accumulates byte-count samples and reports average rates over
// 1/5/15-minute windows. Record sits on the PTY read path, so timestamps
// come from a millisecond-resolution cached clock instead of time.Now.
// Not safe for concurrent use; the multiplexer guards it.
type Tracker struct {
	clock   *timecache.TimeCache
	samples []sample
}

// NewTracker returns an empty Tracker with its own cached clock.
func NewTracker() *Tracker {
	return &Tracker{clock: timecache.NewWithResolution(time.Millisecond)}
}

// Record adds a sample of n bytes and prunes samples older than the
// 15-minute retention horizon.
func (t *Tracker) Record(n int) {
	now := t.clock.CachedTime()
	t.samples = append(t.samples, sample{at: now, bytes: n})

	cutoff := now.Add(-retention)
	keep := t.samples[:0]
	for _, s := range t.samples {
		if !s.at.Before(cutoff) {
			keep = append(keep, s)
		}
	}
	t.samples = keep
}

// BPS returns the average bytes per second over the trailing window.
func (t *Tracker) BPS(window time.Duration) float64 {
	secs := window.Seconds()
	if secs <= 0 {
		return 0
	}
	cutoff := t.clock.CachedTime().Add(-window)
	total := 0
	for _, s := range t.samples {
		if !s.at.Before(cutoff) {
			total += s.bytes
		}
	}
	return float64(total) / secs
}

// BPS1 is the 1-minute average rate.
func (t *Tracker) BPS1() float64 { return t.BPS(time.Minute) }

// BPS5 is the 5-minute average rate.
func (t *Tracker) BPS5() float64 { return t.BPS(5 * time.Minute) }

// BPS15 is the 15-minute average rate.
func (t *Tracker) BPS15() float64 { return t.BPS(15 * time.Minute) }

// Stop releases the cached clock.
func (t *Tracker) Stop() {
	t.clock.Stop()
}
