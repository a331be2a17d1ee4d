package stats

import "time"

// RateCounter measures an event rate over a sliding window. It is owned by
// the consumer and must only be touched from the goroutine that invokes the
// sample callback.
type RateCounter struct {
	window time.Duration
	count  int
	start  time.Time
	hz     float64
}

func NewRateCounter(window time.Duration) *RateCounter {
	if window <= 0 {
		window = time.Second
	}
	return &RateCounter{window: window}
}

// Tick records one event and rolls the window when it elapses.
func (c *RateCounter) Tick() {
	now := time.Now()
	if c.start.IsZero() {
		c.start = now
	}
	c.count++

	if elapsed := now.Sub(c.start); elapsed >= c.window {
		c.hz = float64(c.count) / elapsed.Seconds()
		c.count = 0
		c.start = now
	}
}

// Hz returns the rate measured over the last completed window.
func (c *RateCounter) Hz() float64 {
	return c.hz
}
