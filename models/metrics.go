package models

import "time"

// MetricsSample is one per-operation measurement. Created once per
// completed Decision; consumed only by aggregation, never mutated.
type MetricsSample struct {
	Timestamp        time.Time       `json:"timestamp"`
	OperationType    OperationType   `json:"operation_type"`
	Decision         DecisionOutcome `json:"decision"`
	ProcessingTimeMs float64         `json:"processing_time_ms"`
}

// PerformanceBuckets counts samples by processing-time band
type PerformanceBuckets struct {
	Fast   int `json:"fast"`
	Normal int `json:"normal"`
	Slow   int `json:"slow"`
}

// AggregatedMetrics is recomputed on query over a [start,end) window.
// AutoApprovalRate is a percentage in [0, 100].
type AggregatedMetrics struct {
	WindowStart              time.Time             `json:"window_start"`
	WindowEnd                time.Time             `json:"window_end"`
	TotalOperations          int                   `json:"total_operations"`
	AutoApprovedOperations   int                   `json:"auto_approved_operations"`
	ManualApprovedOperations int                   `json:"manual_approved_operations"`
	AutoApprovalRate         float64               `json:"auto_approval_rate"`
	AverageProcessingTime    float64               `json:"average_processing_time_ms"`
	MaxProcessingTime        float64               `json:"max_processing_time_ms"`
	OperationsByType         map[OperationType]int `json:"operations_by_type"`
	PerformanceBuckets       PerformanceBuckets    `json:"performance_buckets"`
}

// MetricsSnapshot is the current rolling view served by the collector
type MetricsSnapshot struct {
	TodayOperations             int     `json:"today_operations"`
	TodayAutoApprovalRate       float64 `json:"today_auto_approval_rate"`
	RecentAverageProcessingTime float64 `json:"recent_average_processing_time_ms"`
	AlertsCount                 int     `json:"alerts_count"`
}
