package models

import "time"

// SystemMetrics is an aggregated view of in-process instrumentation.
type SystemMetrics struct {
	CacheHitRatio            float64           `json:"cache_hit_ratio"`
	CacheHits                uint64            `json:"cache_hits"`
	CacheMisses              uint64            `json:"cache_misses"`
	RequestsTotal            uint64            `json:"requests_total"`
	AverageRequestDurationMs float64           `json:"average_request_duration_ms"`
	ApplicationTransitions   map[string]uint64 `json:"application_transitions"`
	EmailsDelivered          uint64            `json:"emails_delivered"`
	EmailsFailed             uint64            `json:"emails_failed"`
	EmailsDropped            uint64            `json:"emails_dropped"`
	Goroutines               int               `json:"goroutines"`
	GeneratedAt              time.Time         `json:"generated_at"`
}
