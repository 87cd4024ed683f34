package app

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// timingSmoothing is the EMA weight given to history; higher reads
// steadier on the overlay but lags spikes.
const timingSmoothing = 0.9

// Profiler tracks per-scope frame timings for the stats overlay. Raw
// per-frame durations jitter too much to read at interactive rates, so
// each scope keeps an exponential moving average next to its last raw
// sample. Scopes display in first-seen order so the overlay doesn't
// shuffle between frames.
type Profiler struct {
	scopes map[string]*scopeStats
	counts map[string]int
	order  []string
}

type scopeStats struct {
	start   time.Time
	last    time.Duration
	avg     float64 // milliseconds
	samples uint64
}

func NewProfiler() *Profiler {
	return &Profiler{
		scopes: make(map[string]*scopeStats),
		counts: make(map[string]int),
	}
}

func (p *Profiler) scope(name string) *scopeStats {
	s, ok := p.scopes[name]
	if !ok {
		s = &scopeStats{}
		p.scopes[name] = s
		p.order = append(p.order, name)
	}
	return s
}

func (p *Profiler) BeginScope(name string) {
	p.scope(name).start = time.Now()
}

// EndScope folds the time since BeginScope into the scope's average.
// An EndScope without a matching BeginScope is ignored.
func (p *Profiler) EndScope(name string) {
	s, ok := p.scopes[name]
	if !ok || s.start.IsZero() {
		return
	}
	d := time.Since(s.start)
	s.start = time.Time{}
	p.Observe(name, d)
}

// Observe records one externally measured sample for a scope. EndScope
// goes through here; GPU timestamp readbacks can too.
func (p *Profiler) Observe(name string, d time.Duration) {
	s := p.scope(name)
	s.last = d
	ms := float64(d.Microseconds()) / 1000.0
	if s.samples == 0 {
		s.avg = ms
	} else {
		s.avg = timingSmoothing*s.avg + (1-timingSmoothing)*ms
	}
	s.samples++
}

func (p *Profiler) SetCount(name string, count int) {
	p.counts[name] = count
}

// Average is the smoothed per-frame cost of a scope in milliseconds.
func (p *Profiler) Average(name string) float64 {
	if s, ok := p.scopes[name]; ok {
		return s.avg
	}
	return 0
}

// Last is the most recent raw sample for a scope.
func (p *Profiler) Last(name string) time.Duration {
	if s, ok := p.scopes[name]; ok {
		return s.last
	}
	return 0
}

// Reset drops the accumulated history but keeps the display order.
func (p *Profiler) Reset() {
	for _, s := range p.scopes {
		*s = scopeStats{}
	}
}

func (p *Profiler) StatsString() string {
	var sb strings.Builder

	sb.WriteString("Timings (CPU, avg / last):\n")
	for _, name := range p.order {
		s := p.scopes[name]
		sb.WriteString(fmt.Sprintf("  %-12s: %6.2f / %6.2f ms\n",
			name, s.avg, float64(s.last.Microseconds())/1000.0))
	}

	sb.WriteString("\nStats:\n")
	keys := make([]string, 0, len(p.counts))
	for k := range p.counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf("  %-12s: %d\n", k, p.counts[k]))
	}
	return sb.String()
}
