package monitoring

import (
	"runtime"
	"sync"
	"time"
)

// LatencySummary 延迟摘要
type LatencySummary struct {
	Count     int64   `json:"count"`
	MinMs     float64 `json:"min_ms"`
	MaxMs     float64 `json:"max_ms"`
	AverageMs float64 `json:"average_ms"`
	totalMs   float64
}

// Snapshot is the point-in-time view served by the health endpoint.
type Snapshot struct {
	Uptime     string                    `json:"uptime"`
	Goroutines int                       `json:"goroutines"`
	HeapAlloc  uint64                    `json:"heap_alloc"`
	Counters   map[string]float64        `json:"counters"`
	Latencies  map[string]LatencySummary `json:"latencies"`
}

// MetricsCollector 指标收集器
type MetricsCollector struct {
	mu        sync.RWMutex
	counters  map[string]float64
	latencies map[string]*LatencySummary
	startTime time.Time
}

func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		counters:  make(map[string]float64),
		latencies: make(map[string]*LatencySummary),
		startTime: time.Now(),
	}
}

// IncrCounter 增加计数器
func (mc *MetricsCollector) IncrCounter(name string, value float64) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.counters[name] += value
}

// RecordLatency folds d into the named summary.
func (mc *MetricsCollector) RecordLatency(name string, d time.Duration) {
	ms := float64(d) / float64(time.Millisecond)

	mc.mu.Lock()
	defer mc.mu.Unlock()

	s, ok := mc.latencies[name]
	if !ok {
		s = &LatencySummary{MinMs: ms, MaxMs: ms}
		mc.latencies[name] = s
	}
	s.Count++
	s.totalMs += ms
	if ms < s.MinMs {
		s.MinMs = ms
	}
	if ms > s.MaxMs {
		s.MaxMs = ms
	}
	s.AverageMs = s.totalMs / float64(s.Count)
}

func (mc *MetricsCollector) Counter(name string) float64 {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	return mc.counters[name]
}

func (mc *MetricsCollector) GetUptime() time.Duration {
	return time.Since(mc.startTime)
}

func (mc *MetricsCollector) Snapshot() Snapshot {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	mc.mu.RLock()
	defer mc.mu.RUnlock()

	snap := Snapshot{
		Uptime:     mc.GetUptime().Round(time.Second).String(),
		Goroutines: runtime.NumGoroutine(),
		HeapAlloc:  m.HeapAlloc,
		Counters:   make(map[string]float64, len(mc.counters)),
		Latencies:  make(map[string]LatencySummary, len(mc.latencies)),
	}
	for name, v := range mc.counters {
		snap.Counters[name] = v
	}
	for name, s := range mc.latencies {
		snap.Latencies[name] = *s
	}
	return snap
}
