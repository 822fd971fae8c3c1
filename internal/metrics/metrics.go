package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace                = "hello_pool"
	defaultMaxLatencySamples = 1000
)

// Config はメトリクスの設定
type Config struct {
	MaxLatencySamples int // P99 計算に使うサンプル数の上限
}

// Metrics はジョブのメトリクスを収集する
type Metrics struct {
	submitted   atomic.Uint64
	completed   atomic.Uint64
	panicked    atomic.Uint64
	inFlight    atomic.Int64
	peak        atomic.Int64
	totalTimeNs atomic.Uint64
	dropped     atomic.Uint64

	mu                sync.RWMutex
	startTime         time.Time
	latencies         []time.Duration
	maxLatencySamples int

	registry      *prometheus.Registry
	submittedCtr  prometheus.Counter
	completedCtr  prometheus.Counter
	panickedCtr   prometheus.Counter
	inFlightGauge prometheus.Gauge
	durationHist  prometheus.Histogram
	droppedCtr    prometheus.Counter
}

// New は新しいメトリクスを作成する
func New() *Metrics {
	return NewWithConfig(Config{MaxLatencySamples: defaultMaxLatencySamples})
}

// NewWithConfig は設定を指定してメトリクスを作成する
func NewWithConfig(config Config) *Metrics {
	maxSamples := config.MaxLatencySamples
	if maxSamples <= 0 {
		maxSamples = defaultMaxLatencySamples
	}

	m := &Metrics{
		startTime:         time.Now(),
		latencies:         make([]time.Duration, 0, maxSamples),
		maxLatencySamples: maxSamples,
		registry:          prometheus.NewRegistry(),
		submittedCtr: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_submitted_total",
			Help:      "Total number of jobs handed to the pool",
		}),
		completedCtr: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_completed_total",
			Help:      "Total number of jobs that returned normally",
		}),
		panickedCtr: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_panicked_total",
			Help:      "Total number of jobs that panicked and were recovered",
		}),
		inFlightGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_in_flight",
			Help:      "Number of jobs executing right now",
		}),
		durationHist: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Histogram of job execution time",
			Buckets:   prometheus.DefBuckets,
		}),
		droppedCtr: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Lifecycle events dropped because a subscriber buffer was full",
		}),
	}

	m.registry.MustRegister(
		m.submittedCtr,
		m.completedCtr,
		m.panickedCtr,
		m.inFlightGauge,
		m.durationHist,
		m.droppedCtr,
	)
	return m
}

// Registry はコレクタを登録したレジストリを返す
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordSubmit はジョブの投入を記録する
func (m *Metrics) RecordSubmit() {
	m.submitted.Add(1)
	m.submittedCtr.Inc()
}

// RecordStart はジョブの実行開始を記録する
func (m *Metrics) RecordStart() {
	n := m.inFlight.Add(1)
	m.inFlightGauge.Inc()
	for {
		p := m.peak.Load()
		if n <= p || m.peak.CompareAndSwap(p, n) {
			return
		}
	}
}

// RecordSuccess は正常終了したジョブを記録する
func (m *Metrics) RecordSuccess(took time.Duration) {
	m.completed.Add(1)
	m.completedCtr.Inc()
	m.finish(took)
}

// RecordPanic はパニックしたジョブを記録する
func (m *Metrics) RecordPanic(took time.Duration) {
	m.panicked.Add(1)
	m.panickedCtr.Inc()
	m.finish(took)
}

func (m *Metrics) finish(took time.Duration) {
	m.inFlight.Add(-1)
	m.inFlightGauge.Dec()
	m.totalTimeNs.Add(uint64(took.Nanoseconds()))
	m.durationHist.Observe(took.Seconds())

	m.mu.Lock()
	if len(m.latencies) < m.maxLatencySamples {
		m.latencies = append(m.latencies, took)
	}
	m.mu.Unlock()
}

// RecordDroppedEvent は購読者に届かなかったイベントを記録する
func (m *Metrics) RecordDroppedEvent() {
	m.dropped.Add(1)
	m.droppedCtr.Inc()
}

// DroppedEvents は取りこぼしたイベント数を返す
func (m *Metrics) DroppedEvents() uint64 {
	return m.dropped.Load()
}

// Submitted は投入されたジョブ数を返す
func (m *Metrics) Submitted() uint64 {
	return m.submitted.Load()
}

// Completed は正常終了したジョブ数を返す
func (m *Metrics) Completed() uint64 {
	return m.completed.Load()
}

// Panicked はパニックしたジョブ数を返す
func (m *Metrics) Panicked() uint64 {
	return m.panicked.Load()
}

// InFlight は実行中のジョブ数を返す
func (m *Metrics) InFlight() int64 {
	return m.inFlight.Load()
}

// PeakInFlight は同時実行数の最大値を返す
func (m *Metrics) PeakInFlight() int64 {
	return m.peak.Load()
}

// AverageLatency は平均実行時間を返す
func (m *Metrics) AverageLatency() time.Duration {
	done := m.completed.Load() + m.panicked.Load()
	if done == 0 {
		return 0
	}
	return time.Duration(m.totalTimeNs.Load() / done)
}

// P99Latency はP99実行時間を返す（サンプルベース）
func (m *Metrics) P99Latency() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.latencies) == 0 {
		return 0
	}

	sorted := make([]time.Duration, len(m.latencies))
	copy(sorted, m.latencies)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	idx := int(float64(len(sorted)) * 0.99)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// Snapshot はメトリクスのスナップショット
type Snapshot struct {
	Submitted      uint64
	Completed      uint64
	Panicked       uint64
	InFlight       int64
	PeakInFlight   int64
	DroppedEvents  uint64
	AverageLatency time.Duration
	P99Latency     time.Duration
	Elapsed        time.Duration
}

// Snapshot は現在のメトリクスのスナップショットを返す
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		Submitted:      m.Submitted(),
		Completed:      m.Completed(),
		Panicked:       m.Panicked(),
		InFlight:       m.InFlight(),
		PeakInFlight:   m.PeakInFlight(),
		DroppedEvents:  m.DroppedEvents(),
		AverageLatency: m.AverageLatency(),
		P99Latency:     m.P99Latency(),
		Elapsed:        time.Since(m.startTime),
	}
}
