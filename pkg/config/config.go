package config

import (
	"time"

	"github.com/xzinc/IPL/pkg/cache"
	"github.com/xzinc/IPL/pkg/logger"
)

// AppConfig is the full process configuration
type AppConfig struct {
	App          App             `mapstructure:"app"`
	Logging      logger.Config   `mapstructure:"logging"`
	Backends     []Backend       `mapstructure:"backends"`
	Failover     Failover        `mapstructure:"failover" yaml:"failover"`
	Cache        cache.Config    `mapstructure:"cache"`
	Freshness    Freshness       `mapstructure:"freshness" yaml:"freshness"`
	Learning     Learning        `mapstructure:"learning" yaml:"learning"`
	Interactions Interactions    `mapstructure:"interactions" yaml:"interactions"`
	Datasets     Datasets        `mapstructure:"datasets"`
	APIServer    APIServerConfig `mapstructure:"apiserver"`
	LDAP         LDAP            `mapstructure:"ldap"`
	Telemetry    Telemetry       `mapstructure:"telemetry"`
}

type App struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	// OverridesFile receives admin updates and is merged over the base config on load
	OverridesFile string `mapstructure:"overrides_file"`
}

// Backend is one configured storage backend; list order is failover priority
type Backend struct {
	Name     string `mapstructure:"name"`
	Kind     string `mapstructure:"kind"`
	Enabled  bool   `mapstructure:"enabled"`
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
	// Path is the root directory of a local-file backend
	Path       string        `mapstructure:"path"`
	CapacityMB int64         `mapstructure:"capacity_mb"`
	MaxKeys    int64         `mapstructure:"max_keys"`
	KeyTTL     time.Duration `mapstructure:"key_ttl"`
}

type Failover struct {
	HighWaterMark       float64       `mapstructure:"high_water_mark" yaml:"high_water_mark"`
	PruneThreshold      float64       `mapstructure:"prune_threshold" yaml:"prune_threshold"`
	HealthCheckInterval time.Duration `mapstructure:"health_check_interval" yaml:"health_check_interval"`
	HealthCheckTimeout  time.Duration `mapstructure:"health_check_timeout" yaml:"health_check_timeout"`
	OperationTimeout    time.Duration `mapstructure:"operation_timeout" yaml:"operation_timeout"`
	UsageCacheTTL       time.Duration `mapstructure:"usage_cache_ttl" yaml:"usage_cache_ttl"`
	FailureThreshold    int           `mapstructure:"failure_threshold" yaml:"failure_threshold"`
	RecoveryThreshold   int           `mapstructure:"recovery_threshold" yaml:"recovery_threshold"`
	AutoFailover        bool          `mapstructure:"auto_failover" yaml:"auto_failover"`
	Failback            bool          `mapstructure:"failback" yaml:"failback"`
}

type Freshness struct {
	TTL time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

type Learning struct {
	Rate    string `mapstructure:"rate" yaml:"rate"`
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
}

type Interactions struct {
	// Retention and MaxPerUser override the learning-rate profile when non-zero
	Retention     time.Duration `mapstructure:"retention" yaml:"retention"`
	MaxPerUser    int           `mapstructure:"max_per_user" yaml:"max_per_user"`
	QueueSize     int           `mapstructure:"queue_size" yaml:"queue_size"`
	Workers       int           `mapstructure:"workers" yaml:"workers"`
	PruneInterval time.Duration `mapstructure:"prune_interval" yaml:"prune_interval"`
}

type Datasets struct {
	Enabled         bool          `mapstructure:"enabled"`
	RefreshSchedule string        `mapstructure:"refresh_schedule"`
	Timeout         time.Duration `mapstructure:"timeout"`
	GitHub          GitHub        `mapstructure:"github"`
	Kaggle          Kaggle        `mapstructure:"kaggle"`
}

type GitHub struct {
	URL   string `mapstructure:"url"`
	Token string `mapstructure:"token"`
}

type Kaggle struct {
	BaseURL  string `mapstructure:"base_url"`
	Dataset  string `mapstructure:"dataset"`
	File     string `mapstructure:"file"`
	Username string `mapstructure:"username"`
	Key      string `mapstructure:"key"`
}

type APIServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	Auth    Auth   `mapstructure:"auth"`
	CORS    CORS   `mapstructure:"cors"`
}

type Auth struct {
	Enabled bool `mapstructure:"enabled"`
	// Mode is one of apikey, basic, ldap
	Mode       string      `mapstructure:"mode"`
	APIKeys    []string    `mapstructure:"api_keys"`
	BasicUsers []BasicUser `mapstructure:"basic_users"`
}

type BasicUser struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type CORS struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

type LDAP struct {
	Server string `mapstructure:"server"`
	// UserDN is a format string with one %s for the username
	UserDN string `mapstructure:"user_dn"`
}

type Telemetry struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	ServiceVersion string `mapstructure:"service_version"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	Insecure       bool   `mapstructure:"insecure"`
}
