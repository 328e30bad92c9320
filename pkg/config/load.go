package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	envPrefix        = "IPLSTORE"
	defaultConfigDir = "appconfig"
)

var (
	appConfig     *AppConfig
	appConfigErr  error
	appConfigOnce sync.Once
)

// GetConfig loads the configuration once for the process.
// The file is appconfig/<APP_ENV>.yaml; APP_ENV defaults to "default".
func GetConfig() (*AppConfig, error) {
	appConfigOnce.Do(func() {
		_ = godotenv.Load(".env")

		env := os.Getenv("APP_ENV")
		if env == "" {
			env = "default"
		}
		dir := os.Getenv("CONFIG_DIR")
		if dir == "" {
			dir = defaultConfigDir
		}
		appConfig, appConfigErr = LoadConfig(dir, env)
	})
	return appConfig, appConfigErr
}

// LoadConfig reads <dir>/<env>.yaml, applies IPLSTORE_* environment overrides and the
// admin overrides file, expands ${VAR} references in secrets and validates the result.
func LoadConfig(dir, env string) (*AppConfig, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName(env)
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	v.AddConfigPath(".")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: failed to read config: %v", ErrInvalid, err)
		}
	}

	if overrides := v.GetString("app.overrides_file"); overrides != "" {
		if _, err := os.Stat(overrides); err == nil {
			v.SetConfigFile(overrides)
			if err := v.MergeInConfig(); err != nil {
				return nil, fmt.Errorf("%w: failed to merge overrides %s: %v", ErrInvalid, overrides, err)
			}
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal config: %v", ErrInvalid, err)
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = env
	}

	expandSecrets(cfg)
	applyBackendDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "iplstore")
	v.SetDefault("app.version", "dev")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("failover.high_water_mark", 0.95)
	v.SetDefault("failover.prune_threshold", 0.85)
	v.SetDefault("failover.health_check_interval", "30s")
	v.SetDefault("failover.health_check_timeout", "3s")
	v.SetDefault("failover.operation_timeout", "5s")
	v.SetDefault("failover.usage_cache_ttl", "15s")
	v.SetDefault("failover.failure_threshold", 3)
	v.SetDefault("failover.recovery_threshold", 2)
	v.SetDefault("failover.auto_failover", true)
	v.SetDefault("failover.failback", true)

	v.SetDefault("cache.driver", "memory")
	v.SetDefault("freshness.ttl", "24h")

	v.SetDefault("learning.rate", LearningNormal)
	v.SetDefault("learning.enabled", true)

	v.SetDefault("interactions.queue_size", 1024)
	v.SetDefault("interactions.workers", 2)
	v.SetDefault("interactions.prune_interval", "6h")

	v.SetDefault("datasets.enabled", true)
	v.SetDefault("datasets.refresh_schedule", "0 4 * * *")
	v.SetDefault("datasets.timeout", "60s")
	v.SetDefault("datasets.github.url", "https://raw.githubusercontent.com/12345k/IPL-Dataset/master/IPL/data.csv")
	v.SetDefault("datasets.kaggle.base_url", "https://www.kaggle.com/api/v1")
	v.SetDefault("datasets.kaggle.dataset", "patrickb1912/ipl-complete-dataset-20082020")
	v.SetDefault("datasets.kaggle.file", "matches.csv")

	v.SetDefault("apiserver.enabled", true)
	v.SetDefault("apiserver.host", "0.0.0.0")
	v.SetDefault("apiserver.port", 8080)
	v.SetDefault("apiserver.auth.mode", "apikey")

	v.SetDefault("telemetry.service_name", "iplstore")
}

func expandSecrets(cfg *AppConfig) {
	for i := range cfg.Backends {
		cfg.Backends[i].URI = os.ExpandEnv(cfg.Backends[i].URI)
		cfg.Backends[i].Path = os.ExpandEnv(cfg.Backends[i].Path)
	}
	cfg.Datasets.GitHub.Token = os.ExpandEnv(cfg.Datasets.GitHub.Token)
	cfg.Datasets.Kaggle.Username = os.ExpandEnv(cfg.Datasets.Kaggle.Username)
	cfg.Datasets.Kaggle.Key = os.ExpandEnv(cfg.Datasets.Kaggle.Key)
	// keys referencing an unset variable are dropped
	keys := cfg.APIServer.Auth.APIKeys[:0]
	for _, key := range cfg.APIServer.Auth.APIKeys {
		if key = os.ExpandEnv(key); key != "" {
			keys = append(keys, key)
		}
	}
	cfg.APIServer.Auth.APIKeys = keys
	if cfg.Cache.Redis != nil {
		cfg.Cache.Redis.Password = os.ExpandEnv(cfg.Cache.Redis.Password)
	}
}

func applyBackendDefaults(cfg *AppConfig) {
	for i := range cfg.Backends {
		b := &cfg.Backends[i]
		if b.Kind == "local-file" && b.Path == "" {
			b.Path = filepath.Join("data")
		}
		if b.Kind == "remote-key-value" && b.KeyTTL == 0 {
			b.KeyTTL = defaultKeyTTL
		}
	}
}
