// Package metrics provides a small, backend-agnostic abstraction for
// recording per-run import counters.
//
// It exposes a narrow Backend interface and a global, pluggable backend that
// defaults to a no-op implementation, so metric calls are always safe even
// when nothing is configured. The concrete default shipped here is a log
// backend that emits one summary line per counter at flush time; richer
// systems can be plugged in without touching the engine.
package metrics

import (
	"log"
	"sort"
	"sync"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// Flush publishes accumulated metrics, if the backend needs it.
	Flush() error
}

// nopBackend is used by default so metrics are optional.
type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels) {}
func (nopBackend) Flush() error                       { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs a concrete backend. Passing nil keeps the existing one.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	mu.Lock()
	backend = b
	mu.Unlock()
}

// IncCounter delegates to the current backend.
func IncCounter(name string, delta float64, labels Labels) {
	mu.RLock()
	b := backend
	mu.RUnlock()
	b.IncCounter(name, delta, labels)
}

// Flush delegates to the current backend.
func Flush() error {
	mu.RLock()
	b := backend
	mu.RUnlock()
	return b.Flush()
}

// LogBackend accumulates counters in memory and logs them at flush. It is
// the default backend for CLI runs, where the run summary is the report.
type LogBackend struct {
	mu     sync.Mutex
	job    string
	counts map[string]float64
}

// NewLogBackend constructs a LogBackend labeled with the job name.
func NewLogBackend(job string) *LogBackend {
	return &LogBackend{job: job, counts: map[string]float64{}}
}

// IncCounter implements Backend. Labels are folded into the counter name.
func (l *LogBackend) IncCounter(name string, delta float64, labels Labels) {
	key := name
	for _, k := range sortedKeys(labels) {
		key += " " + k + "=" + labels[k]
	}
	l.mu.Lock()
	l.counts[key] += delta
	l.mu.Unlock()
}

// Flush implements Backend, logging one line per counter.
func (l *LogBackend) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, k := range sortedKeys2(l.counts) {
		log.Printf("metrics: job=%s %s=%g", l.job, k, l.counts[k])
	}
	return nil
}

func sortedKeys(m Labels) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedKeys2(m map[string]float64) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
