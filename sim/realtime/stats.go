package realtime

import (
	"sync"
	"time"
)

// DurationSummary summarizes a series of durations.
type DurationSummary struct {
	Mean time.Duration
	Max  time.Duration
}

// RatioSummary summarizes a series of ratios.
type RatioSummary struct {
	Mean float64
	Max  float64
}

// Summary groups the statistics over a set of iterations.
type Summary struct {
	Count      int
	Step       DurationSummary
	Callback   DurationSummary
	SpeedRatio RatioSummary
}

// Stats holds the pacer statistics since the start and over the most recent
// iterations.
type Stats struct {
	Iterations uint64
	Cumulative Summary
	Window     Summary
	WindowSize int
}

type collector struct {
	lock sync.Mutex

	n        uint64
	stepSum  time.Duration
	stepMax  time.Duration
	cbSum    time.Duration
	cbMax    time.Duration
	ratioSum float64
	ratioMax float64

	window []Sample
	next   int
	size   int
}

func newCollector(size int) *collector {
	if size < 1 {
		size = 1
	}

	return &collector{
		window: make([]Sample, 0, size),
		size:   size,
	}
}

func (c *collector) add(s Sample) uint64 {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.n++
	s.Iteration = c.n

	c.stepSum += s.Step
	c.stepMax = max(c.stepMax, s.Step)
	c.cbSum += s.Callback
	c.cbMax = max(c.cbMax, s.Callback)
	c.ratioSum += s.SpeedRatio
	c.ratioMax = max(c.ratioMax, s.SpeedRatio)

	if len(c.window) < c.size {
		c.window = append(c.window, s)
	} else {
		c.window[c.next] = s
	}

	c.next = (c.next + 1) % c.size

	return c.n
}

func (c *collector) snapshot() Stats {
	c.lock.Lock()
	defer c.lock.Unlock()

	st := Stats{
		Iterations: c.n,
		WindowSize: c.size,
	}

	if c.n == 0 {
		return st
	}

	n := time.Duration(c.n)
	st.Cumulative = Summary{
		Count:      int(c.n),
		Step:       DurationSummary{Mean: c.stepSum / n, Max: c.stepMax},
		Callback:   DurationSummary{Mean: c.cbSum / n, Max: c.cbMax},
		SpeedRatio: RatioSummary{Mean: c.ratioSum / float64(c.n), Max: c.ratioMax},
	}

	st.Window = summarize(c.window)

	return st
}

func summarize(samples []Sample) Summary {
	s := Summary{Count: len(samples)}
	if len(samples) == 0 {
		return s
	}

	var stepSum, cbSum time.Duration
	var ratioSum float64

	for _, sample := range samples {
		stepSum += sample.Step
		cbSum += sample.Callback
		ratioSum += sample.SpeedRatio

		s.Step.Max = max(s.Step.Max, sample.Step)
		s.Callback.Max = max(s.Callback.Max, sample.Callback)
		s.SpeedRatio.Max = max(s.SpeedRatio.Max, sample.SpeedRatio)
	}

	n := time.Duration(len(samples))
	s.Step.Mean = stepSum / n
	s.Callback.Mean = cbSum / n
	s.SpeedRatio.Mean = ratioSum / float64(len(samples))

	return s
}
