package models

import "time"

// SystemMetrics is the JSON snapshot of process and HTTP metrics.
type SystemMetrics struct {
	GeneratedAt    time.Time `json:"generated_at"`
	Goroutines     int       `json:"goroutines"`
	RequestsTotal  uint64    `json:"requests_total"`
	RequestErrors  uint64    `json:"request_errors"`
	AvgLatencyMs   float64   `json:"avg_latency_ms"`
	CacheHits      uint64    `json:"cache_hits"`
	CacheMisses    uint64    `json:"cache_misses"`
	CacheHitRatio  float64   `json:"cache_hit_ratio"`
	DBQueriesTotal uint64    `json:"db_queries_total"`
	QueuePending   int       `json:"queue_pending"`
}
