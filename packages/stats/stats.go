// Package stats summarizes recorded execution attempts: outcome counts,
// status codes and latency percentiles.
package stats

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/abdul-hamid-achik/postbox/packages/core/model"
)

const (
	// Latency is tracked in microseconds between 1us and 60s.
	minLatencyUs = 1
	maxLatencyUs = 60_000_000
	sigFigures   = 3
)

// Summary is the aggregate view of a set of attempts.
type Summary struct {
	Total       int64            `json:"total"`
	Completed   int64            `json:"completed"`
	Failed      int64            `json:"failed"`
	SuccessRate float64          `json:"successRate"`
	StatusCodes map[int]int64    `json:"statusCodes"`
	ErrorKinds  map[string]int64 `json:"errorKinds"`

	// Latency percentiles
	P50    time.Duration `json:"p50"`
	P95    time.Duration `json:"p95"`
	P99    time.Duration `json:"p99"`
	Min    time.Duration `json:"min"`
	Max    time.Duration `json:"max"`
	Mean   time.Duration `json:"mean"`
	StdDev time.Duration `json:"stdDev"`

	FirstAttempt time.Time `json:"firstAttempt"`
	LastAttempt  time.Time `json:"lastAttempt"`
}

// Collector aggregates attempts incrementally. It is safe for concurrent use.
type Collector struct {
	mu          sync.Mutex
	histogram   *hdrhistogram.Histogram
	total       int64
	completed   int64
	failed      int64
	statusCodes map[int]int64
	errorKinds  map[string]int64
	first, last time.Time
}

func NewCollector() *Collector {
	return &Collector{
		histogram:   hdrhistogram.New(minLatencyUs, maxLatencyUs, sigFigures),
		statusCodes: make(map[int]int64),
		errorKinds:  make(map[string]int64),
	}
}

// Record adds one finished attempt. Attempts that are not terminal are ignored.
func (c *Collector) Record(a model.Attempt) {
	if !a.State.Terminal() {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.total++
	if a.State == model.StateCompleted {
		c.completed++
		c.statusCodes[a.Status]++
	} else {
		c.failed++
		c.errorKinds[a.Kind]++
	}

	_ = c.histogram.RecordValue(clampLatency(a.Duration))

	if c.first.IsZero() || a.StartedAt.Before(c.first) {
		c.first = a.StartedAt
	}
	if a.StartedAt.After(c.last) {
		c.last = a.StartedAt
	}
}

// Summary returns the statistics recorded so far.
func (c *Collector) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Summary{
		Total:        c.total,
		Completed:    c.completed,
		Failed:       c.failed,
		StatusCodes:  make(map[int]int64, len(c.statusCodes)),
		ErrorKinds:   make(map[string]int64, len(c.errorKinds)),
		FirstAttempt: c.first,
		LastAttempt:  c.last,
	}
	for k, v := range c.statusCodes {
		s.StatusCodes[k] = v
	}
	for k, v := range c.errorKinds {
		s.ErrorKinds[k] = v
	}
	if c.total == 0 {
		return s
	}

	s.SuccessRate = float64(c.completed) / float64(c.total) * 100
	s.P50 = micros(c.histogram.ValueAtQuantile(50))
	s.P95 = micros(c.histogram.ValueAtQuantile(95))
	s.P99 = micros(c.histogram.ValueAtQuantile(99))
	s.Min = micros(c.histogram.Min())
	s.Max = micros(c.histogram.Max())
	s.Mean = time.Duration(c.histogram.Mean() * float64(time.Microsecond))
	s.StdDev = time.Duration(c.histogram.StdDev() * float64(time.Microsecond))
	return s
}

// Summarize aggregates attempts in one call.
func Summarize(attempts []model.Attempt) Summary {
	c := NewCollector()
	for _, a := range attempts {
		c.Record(a)
	}
	return c.Summary()
}

func clampLatency(d time.Duration) int64 {
	us := d.Microseconds()
	if us < minLatencyUs {
		us = minLatencyUs
	}
	if us > maxLatencyUs {
		us = maxLatencyUs
	}
	return us
}

func micros(v int64) time.Duration {
	return time.Duration(v) * time.Microsecond
}
