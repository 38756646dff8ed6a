package entities

// SystemStats snapshot operativo del subsistema de precios.
type SystemStats struct {
	QueueDepth        int   `json:"queue_depth"`
	QueueProcessed    int64 `json:"queue_processed"`
	QueueFailed       int64 `json:"queue_failed"`
	QueueTimedOut     int64 `json:"queue_timed_out"`
	RequestsInWindow  int   `json:"requests_in_window"`
	MaxRequestsPerMin int   `json:"max_requests_per_minute"`
	InCooldown        bool  `json:"in_cooldown"`
	CooldownRemaining int64 `json:"cooldown_remaining_seconds"`

	BreakerState string `json:"breaker_state"`

	MemoryEntries          int     `json:"memory_entries"`
	MemoryAgeSeconds       float64 `json:"memory_age_seconds"`
	DurableEntries         int     `json:"durable_entries"`
	DurableAgeSeconds      float64 `json:"durable_age_seconds"`
	LastUpdateMinutesAgo   int64   `json:"last_update_minutes_ago"`
	FullUpdateIntervalMins int64   `json:"full_update_interval_minutes"`
}
