package telemetry

import (
	"fmt"
	"math"
	"time"
)

// Series accumulates a run of observations and summarizes them:
// min/max/sum/average/standard deviation. Unlike the prometheus
// collectors above, a Series lives for exactly one benchmark run and is
// read out at the end, not scraped continuously.
type Series struct {
	values []float64
}

// Push appends one observation.
func (s *Series) Push(v float64) { s.values = append(s.values, v) }

// Len reports how many observations have been pushed.
func (s *Series) Len() int { return len(s.values) }

// Min returns the smallest observation. Panics if the series is empty.
func (s *Series) Min() float64 { return s.reduce(math.Min, math.Inf(1)) }

// Max returns the largest observation. Panics if the series is empty.
func (s *Series) Max() float64 { return s.reduce(math.Max, math.Inf(-1)) }

// Sum returns the sum of every observation.
func (s *Series) Sum() float64 {
	var total float64
	for _, v := range s.values {
		total += v
	}
	return total
}

// Avg returns the arithmetic mean. Panics if the series is empty.
func (s *Series) Avg() float64 {
	if len(s.values) == 0 {
		panic("telemetry: Avg of empty series")
	}
	return s.Sum() / float64(len(s.values))
}

// StdDev returns the population standard deviation. Panics if the series
// is empty.
func (s *Series) StdDev() float64 {
	avg := s.Avg()
	var sumSqDev float64
	for _, v := range s.values {
		d := v - avg
		sumSqDev += d * d
	}
	return math.Sqrt(sumSqDev / float64(len(s.values)))
}

func (s *Series) reduce(f func(a, b float64) float64, start float64) float64 {
	if len(s.values) == 0 {
		panic("telemetry: reduce of empty series")
	}
	acc := start
	for _, v := range s.values {
		acc = f(acc, v)
	}
	return acc
}

// Timer measures one named region's elapsed time across possibly many
// start/stop pairs, accumulating total duration per topic/region.
type Timer struct {
	Topic    string
	Region   string
	running  bool
	start    time.Time
	duration time.Duration
}

// NewTimer creates a stopped timer labeled by topic and region.
func NewTimer(topic, region string) *Timer {
	return &Timer{Topic: topic, Region: region}
}

// Start begins timing. Panics if already running.
func (t *Timer) Start() {
	if t.running {
		panic("telemetry: timer already running")
	}
	t.running = true
	t.start = time.Now()
}

// Stop ends the current interval, accumulates it into the timer's total,
// and returns the interval's own duration. Panics if not running.
func (t *Timer) Stop() time.Duration {
	if !t.running {
		panic("telemetry: timer not running")
	}
	t.running = false
	interval := time.Since(t.start)
	t.duration += interval
	return interval
}

// Elapsed returns the accumulated duration across every Start/Stop pair
// so far.
func (t *Timer) Elapsed() time.Duration { return t.duration }

// String renders one region's accumulated timing.
func (t *Timer) String() string {
	return fmt.Sprintf("%s %s Time (us): %d", t.Topic, t.Region, t.duration.Microseconds())
}
