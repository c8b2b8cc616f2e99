// Package metrics collects per-decision samples off the hot path. Samples
// flow through a bounded channel into a background worker; recording never
// blocks a decision, and a full buffer drops the newest sample rather than
// stalling.
package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/trustplane/trustplane/models"
	"go.uber.org/zap"
)

// Config tunes buffering, bucketing and alerting
type Config struct {
	// BufferSize is the sample channel capacity
	BufferSize int

	// FastThresholdMs and SlowThresholdMs bound the performance buckets:
	// fast < FastThresholdMs <= normal <= SlowThresholdMs < slow.
	FastThresholdMs float64
	SlowThresholdMs float64

	// RollingWindow is how many recent samples feed the snapshot's
	// rolling average.
	RollingWindow int

	// AlertThresholdMs raises an alert each time the rolling average
	// crosses above it.
	AlertThresholdMs float64

	// Retention bounds how long samples are kept in memory. Zero keeps
	// everything.
	Retention time.Duration
}

// DefaultConfig returns the collector defaults
func DefaultConfig() Config {
	return Config{
		BufferSize:       1024,
		FastThresholdMs:  50,
		SlowThresholdMs:  100,
		RollingWindow:    100,
		AlertThresholdMs: 100,
		Retention:        7 * 24 * time.Hour,
	}
}

// Service aggregates decision samples in memory
type Service struct {
	cfg    Config
	logger *zap.Logger

	samples chan models.MetricsSample
	done    chan struct{}

	mu      sync.RWMutex
	history []models.MetricsSample
	dropped uint64

	// alertsCount increments each time the rolling average crosses the
	// alert threshold from below.
	alertsCount    int
	aboveThreshold bool

	now func() time.Time
}

// NewService creates the collector and starts its worker
func NewService(cfg Config, logger *zap.Logger) *Service {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}
	if cfg.RollingWindow <= 0 {
		cfg.RollingWindow = DefaultConfig().RollingWindow
	}

	s := &Service{
		cfg:     cfg,
		logger:  logger,
		samples: make(chan models.MetricsSample, cfg.BufferSize),
		done:    make(chan struct{}),
		now:     time.Now,
	}

	go s.worker()
	return s
}

// Record submits one sample without blocking. When the buffer is full the
// sample is dropped and counted; decision latency is never spent here.
func (s *Service) Record(sample models.MetricsSample) {
	select {
	case s.samples <- sample:
	default:
		s.mu.Lock()
		s.dropped++
		dropped := s.dropped
		s.mu.Unlock()

		s.logger.Warn("metrics buffer full, sample dropped",
			zap.Uint64("total_dropped", dropped))
	}
}

// worker drains the sample channel into history
func (s *Service) worker() {
	for {
		select {
		case <-s.done:
			// Drain what is already buffered before exiting.
			for {
				select {
				case sample := <-s.samples:
					s.ingest(sample)
				default:
					return
				}
			}
		case sample := <-s.samples:
			s.ingest(sample)
		}
	}
}

func (s *Service) ingest(sample models.MetricsSample) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, sample)
	s.updateAlertsLocked()
}

// updateAlertsLocked recomputes the rolling average and counts upward
// threshold crossings. Caller holds mu.
func (s *Service) updateAlertsLocked() {
	if s.cfg.AlertThresholdMs <= 0 {
		return
	}

	avg := s.rollingAverageLocked()
	above := avg > s.cfg.AlertThresholdMs
	if above && !s.aboveThreshold {
		s.alertsCount++
		s.logger.Warn("processing time alert",
			zap.Float64("rolling_average_ms", avg),
			zap.Float64("threshold_ms", s.cfg.AlertThresholdMs))
	}
	s.aboveThreshold = above
}

func (s *Service) rollingAverageLocked() float64 {
	n := len(s.history)
	if n == 0 {
		return 0
	}
	window := s.cfg.RollingWindow
	if n < window {
		window = n
	}

	var sum float64
	for _, sample := range s.history[n-window:] {
		sum += sample.ProcessingTimeMs
	}
	return sum / float64(window)
}

// Aggregate summarizes the samples with Timestamp in [start, end). An
// empty window reports zero operations and a zero rate, never an error.
func (s *Service) Aggregate(start, end time.Time) models.AggregatedMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agg := models.AggregatedMetrics{
		WindowStart:      start,
		WindowEnd:        end,
		OperationsByType: make(map[models.OperationType]int),
	}

	var totalTime float64
	for _, sample := range s.history {
		if sample.Timestamp.Before(start) || !sample.Timestamp.Before(end) {
			continue
		}

		agg.TotalOperations++
		agg.OperationsByType[sample.OperationType]++
		if sample.Decision == models.DecisionAuto {
			agg.AutoApprovedOperations++
		} else {
			agg.ManualApprovedOperations++
		}

		totalTime += sample.ProcessingTimeMs
		if sample.ProcessingTimeMs > agg.MaxProcessingTime {
			agg.MaxProcessingTime = sample.ProcessingTimeMs
		}

		switch {
		case sample.ProcessingTimeMs < s.cfg.FastThresholdMs:
			agg.PerformanceBuckets.Fast++
		case sample.ProcessingTimeMs <= s.cfg.SlowThresholdMs:
			agg.PerformanceBuckets.Normal++
		default:
			agg.PerformanceBuckets.Slow++
		}
	}

	if agg.TotalOperations > 0 {
		agg.AutoApprovalRate = float64(agg.AutoApprovedOperations) / float64(agg.TotalOperations) * 100
		agg.AverageProcessingTime = totalTime / float64(agg.TotalOperations)
	}
	return agg
}

// CurrentSnapshot reports today's totals alongside the rolling average and
// the number of alerts raised since start.
func (s *Service) CurrentSnapshot() models.MetricsSnapshot {
	now := s.now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	today := s.Aggregate(dayStart, now.Add(time.Second))

	s.mu.RLock()
	defer s.mu.RUnlock()

	return models.MetricsSnapshot{
		TodayOperations:             today.TotalOperations,
		TodayAutoApprovalRate:       today.AutoApprovalRate,
		RecentAverageProcessingTime: s.rollingAverageLocked(),
		AlertsCount:                 s.alertsCount,
	}
}

// Dropped returns how many samples were lost to a full buffer
func (s *Service) Dropped() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dropped
}

// ReplayAudit rebuilds counters from audit records, replacing the current
// history. Processing times are not part of the audit contract, so
// replayed samples carry none; counts and rates are exact. Samples take
// the decision time, the same stamp live recording uses, so a record
// near a window boundary aggregates into the same window after replay.
func (s *Service) ReplayAudit(records []*models.AuditRecord) {
	rebuilt := make([]models.MetricsSample, 0, len(records))
	for _, record := range records {
		rebuilt = append(rebuilt, models.MetricsSample{
			Timestamp:     record.Decision.DecidedAt,
			OperationType: record.Decision.OperationType,
			Decision:      record.Decision.Outcome,
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = rebuilt
	s.logger.Info("metrics rebuilt from audit trail", zap.Int("samples", len(rebuilt)))
}

// StartRetention trims in-memory samples older than the configured
// retention once per interval until the context is cancelled.
func (s *Service) StartRetention(ctx context.Context, interval time.Duration) {
	if s.cfg.Retention <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.purgeOlderThan(s.now().Add(-s.cfg.Retention))
			}
		}
	}()
}

func (s *Service) purgeOlderThan(cutoff time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.history[:0]
	for _, sample := range s.history {
		if sample.Timestamp.Before(cutoff) {
			continue
		}
		kept = append(kept, sample)
	}
	s.history = kept
}

// Close stops the worker after draining buffered samples
func (s *Service) Close() {
	close(s.done)
}
