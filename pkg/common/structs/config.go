package structs

// ConfigView is the part of the configuration an operator can read and change
type ConfigView struct {
	LearningRate    string  `json:"learning_rate"`
	LearningEnabled bool    `json:"learning_enabled"`
	HighWaterMark   float64 `json:"high_water_mark"`
	PruneThreshold  float64 `json:"prune_threshold"`
	AutoFailover    bool    `json:"auto_failover"`
	Failback        bool    `json:"failback"`
	FreshnessTTL    string  `json:"freshness_ttl"`
	MaxPerUser      int     `json:"max_per_user"`
	Retention       string  `json:"retention"`
}

// ConfigPatch holds the fields to change; nil fields are left as they are.
// Durations use time.ParseDuration syntax.
type ConfigPatch struct {
	LearningRate    *string  `json:"learning_rate,omitempty"`
	LearningEnabled *bool    `json:"learning_enabled,omitempty"`
	HighWaterMark   *float64 `json:"high_water_mark,omitempty"`
	PruneThreshold  *float64 `json:"prune_threshold,omitempty"`
	AutoFailover    *bool    `json:"auto_failover,omitempty"`
	Failback        *bool    `json:"failback,omitempty"`
	FreshnessTTL    *string  `json:"freshness_ttl,omitempty"`
	MaxPerUser      *int     `json:"max_per_user,omitempty"`
	Retention       *string  `json:"retention,omitempty"`
}
