package cache

import (
	"sync"
	"time"
)

// Metrics tracks cache performance
type Metrics struct {
	mu        sync.RWMutex
	hits      int64
	misses    int64
	sets      int64
	deletes   int64
	errors    int64
	hitTime   time.Duration
	missTime  time.Duration
	lastReset time.Time
}

// Snapshot is a point-in-time copy of Metrics
type Snapshot struct {
	Hits        int64
	Misses      int64
	Sets        int64
	Deletes     int64
	Errors      int64
	HitRate     float64
	AvgHitTime  time.Duration
	AvgMissTime time.Duration
	Uptime      time.Duration
}

// NewMetrics creates a new metrics tracker
func NewMetrics() *Metrics {
	return &Metrics{
		lastReset: time.Now(),
	}
}

func (m *Metrics) RecordHit(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hits++
	m.hitTime += d
}

func (m *Metrics) RecordMiss(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.misses++
	m.missTime += d
}

func (m *Metrics) RecordSet() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
}

func (m *Metrics) RecordDelete() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
}

func (m *Metrics) RecordError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors++
}

// Snapshot returns current counters and derived rates
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Snapshot{
		Hits:    m.hits,
		Misses:  m.misses,
		Sets:    m.sets,
		Deletes: m.deletes,
		Errors:  m.errors,
		Uptime:  time.Since(m.lastReset),
	}
	if total := m.hits + m.misses; total > 0 {
		s.HitRate = float64(m.hits) / float64(total) * 100
	}
	if m.hits > 0 {
		s.AvgHitTime = m.hitTime / time.Duration(m.hits)
	}
	if m.misses > 0 {
		s.AvgMissTime = m.missTime / time.Duration(m.misses)
	}
	return s
}

// GetStats renders a Snapshot for JSON endpoints
func (m *Metrics) GetStats() map[string]interface{} {
	s := m.Snapshot()
	return map[string]interface{}{
		"hits":          s.Hits,
		"misses":        s.Misses,
		"sets":          s.Sets,
		"deletes":       s.Deletes,
		"errors":        s.Errors,
		"hit_rate":      s.HitRate,
		"avg_hit_time":  s.AvgHitTime.String(),
		"avg_miss_time": s.AvgMissTime.String(),
		"uptime":        s.Uptime.String(),
	}
}

// Reset resets all metrics
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hits, m.misses, m.sets, m.deletes, m.errors = 0, 0, 0, 0, 0
	m.hitTime, m.missTime = 0, 0
	m.lastReset = time.Now()
}
