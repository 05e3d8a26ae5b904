// Package profiling adds pprof and stage timing flags to presence commands.
package profiling

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
)

// Stopper ends a timed stage.
type Stopper interface {
	Stop()
}

type stageStats struct {
	count int
	total time.Duration
	max   time.Duration
}

// Timer aggregates durations per stage name. A disabled timer records
// nothing.
type Timer struct {
	mu      sync.Mutex
	enabled bool
	start   time.Time
	stages  map[string]*stageStats
	now     func() time.Time
}

// NewTimer creates a disabled timer.
func NewTimer() *Timer {
	return &Timer{stages: make(map[string]*stageStats), now: time.Now}
}

var defaultTimer = NewTimer()

// Enable turns on the global timer.
func Enable() { defaultTimer.Enable() }

// Start begins timing a stage on the global timer.
func Start(name string) Stopper { return defaultTimer.Start(name) }

// Summarize writes the global timer's summary to w.
func Summarize(w io.Writer) { defaultTimer.Summarize(w) }

// Enable starts recording.
func (t *Timer) Enable() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		t.enabled = true
		t.start = t.now()
	}
}

// Start begins timing one run of the named stage.
func (t *Timer) Start(name string) Stopper {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return noopStopper{}
	}
	return &run{timer: t, name: name, start: t.now()}
}

func (t *Timer) record(name string, d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.stages[name]
	if !ok {
		s = &stageStats{}
		t.stages[name] = s
	}
	s.count++
	s.total += d
	if d > s.max {
		s.max = d
	}
}

// Summarize prints one line per stage, slowest total first.
func (t *Timer) Summarize(w io.Writer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}

	names := make([]string, 0, len(t.stages))
	for name := range t.stages {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return t.stages[names[i]].total > t.stages[names[j]].total
	})

	wall := t.now().Sub(t.start)
	fmt.Fprintf(w, "\n--- Timing (%v wall) ---\n", wall.Round(100*time.Microsecond))
	for _, name := range names {
		s := t.stages[name]
		avg := s.total / time.Duration(s.count)
		fmt.Fprintf(w, "%-12s n=%-6d total=%-10v avg=%-10v max=%v\n", name, s.count,
			s.total.Round(time.Microsecond), avg.Round(time.Microsecond), s.max.Round(time.Microsecond))
	}
}

type run struct {
	timer *Timer
	name  string
	start time.Time
	once  sync.Once
}

func (r *run) Stop() {
	r.once.Do(func() {
		r.timer.record(r.name, r.timer.now().Sub(r.start))
	})
}

type noopStopper struct{}

func (noopStopper) Stop() {}
