package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// ErrorRate captures success/failure counts for one operation.
type ErrorRate struct {
	Total     int64   `json:"total"`
	Errors    int64   `json:"errors"`
	ErrorRate float64 `json:"error_rate"`
}

// Snapshot is a point-in-time view of every instrument, served on the
// metrics endpoint.
type Snapshot struct {
	UptimeSeconds int64                `json:"uptime_seconds"`
	Counters      map[string]int64     `json:"counters"`
	Gauges        map[string]int64     `json:"gauges"`
	ErrorRates    map[string]ErrorRate `json:"error_rates"`
	Health        map[string]bool      `json:"health"`
}

// Metrics is an in-process collector for counters, gauges, error rates
// and component health.
type Metrics struct {
	mu         sync.RWMutex
	counters   map[string]*int64
	gauges     map[string]*int64
	errorRates map[string]*errorRate
	health     map[string]*int64
	startTime  time.Time
}

type errorRate struct {
	total  int64
	errors int64
}

// New creates an empty collector.
func New() *Metrics {
	return &Metrics{
		counters:   make(map[string]*int64),
		gauges:     make(map[string]*int64),
		errorRates: make(map[string]*errorRate),
		health:     make(map[string]*int64),
		startTime:  time.Now(),
	}
}

// IncrementCounter increments a counter by 1.
func (m *Metrics) IncrementCounter(name string) {
	atomic.AddInt64(m.counter(name), 1)
}

// SetGauge sets a gauge to a specific value.
func (m *Metrics) SetGauge(name string, value int64) {
	m.mu.RLock()
	gauge, exists := m.gauges[name]
	m.mu.RUnlock()

	if !exists {
		m.mu.Lock()
		if gauge, exists = m.gauges[name]; !exists {
			var g int64
			gauge = &g
			m.gauges[name] = gauge
		}
		m.mu.Unlock()
	}

	atomic.StoreInt64(gauge, value)
}

// RecordSuccess records a successful operation for error rate tracking.
func (m *Metrics) RecordSuccess(name string) {
	m.recordOutcome(name, false)
}

// RecordError records a failed operation for error rate tracking.
func (m *Metrics) RecordError(name string) {
	m.recordOutcome(name, true)
}

// SetHealth sets the health status of a component.
func (m *Metrics) SetHealth(component string, healthy bool) {
	var value int64
	if healthy {
		value = 1
	}

	m.mu.RLock()
	h, exists := m.health[component]
	m.mu.RUnlock()

	if !exists {
		m.mu.Lock()
		if h, exists = m.health[component]; !exists {
			var v int64
			h = &v
			m.health[component] = h
		}
		m.mu.Unlock()
	}

	atomic.StoreInt64(h, value)
}

// Collect returns a snapshot of all instruments.
func (m *Metrics) Collect() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := Snapshot{
		UptimeSeconds: int64(time.Since(m.startTime).Seconds()),
		Counters:      make(map[string]int64, len(m.counters)),
		Gauges:        make(map[string]int64, len(m.gauges)),
		ErrorRates:    make(map[string]ErrorRate, len(m.errorRates)),
		Health:        make(map[string]bool, len(m.health)),
	}

	for name, c := range m.counters {
		snap.Counters[name] = atomic.LoadInt64(c)
	}
	for name, g := range m.gauges {
		snap.Gauges[name] = atomic.LoadInt64(g)
	}
	for name, er := range m.errorRates {
		total := atomic.LoadInt64(&er.total)
		errs := atomic.LoadInt64(&er.errors)
		rate := ErrorRate{Total: total, Errors: errs}
		if total > 0 {
			rate.ErrorRate = float64(errs) / float64(total)
		}
		snap.ErrorRates[name] = rate
	}
	for name, h := range m.health {
		snap.Health[name] = atomic.LoadInt64(h) == 1
	}

	return snap
}

func (m *Metrics) counter(name string) *int64 {
	m.mu.RLock()
	counter, exists := m.counters[name]
	m.mu.RUnlock()

	if !exists {
		m.mu.Lock()
		// Check again to avoid racing a concurrent creation.
		if counter, exists = m.counters[name]; !exists {
			var c int64
			counter = &c
			m.counters[name] = counter
		}
		m.mu.Unlock()
	}

	return counter
}

func (m *Metrics) recordOutcome(name string, isError bool) {
	m.mu.RLock()
	er, exists := m.errorRates[name]
	m.mu.RUnlock()

	if !exists {
		m.mu.Lock()
		if er, exists = m.errorRates[name]; !exists {
			er = &errorRate{}
			m.errorRates[name] = er
		}
		m.mu.Unlock()
	}

	atomic.AddInt64(&er.total, 1)
	if isError {
		atomic.AddInt64(&er.errors, 1)
	}
}
