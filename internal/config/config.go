package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

type Config struct {
	Port               int      `mapstructure:"port"`
	AllowedOrigins     []string `mapstructure:"allowed_origins"`
	RequestTimeoutSec  int      `mapstructure:"request_timeout_sec"`  // HTTP read/write; 0 = use server default
	ShutdownTimeoutSec int      `mapstructure:"shutdown_timeout_sec"` // Graceful shutdown wait

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"` // json or console
	LogFile   string `mapstructure:"log_file"`   // rotating file sink; empty = stderr only

	DefaultLayout string `mapstructure:"default_layout"` // layout used when a view does not name one
	FixturesDir   string `mapstructure:"fixtures_dir"`   // extra *.yaml layouts loaded at startup

	KubernetesEnabled bool   `mapstructure:"kubernetes_enabled"` // register the live cluster layout
	KubeconfigPath    string `mapstructure:"kubeconfig_path"`
	KubeContext       string `mapstructure:"kube_context"`
	K8sTimeoutSec     int    `mapstructure:"k8s_timeout_sec"` // Timeout for outbound K8s API calls
	K8sMaxNodes       int    `mapstructure:"k8s_max_nodes"`   // cap on cluster graph size; 0 = unbounded
	K8sRetryAttempts  int    `mapstructure:"k8s_retry_attempts"`

	CacheTTLSec int `mapstructure:"cache_ttl_sec"` // Canonical graph cache TTL; 0 = cache disabled
	CacheSize   int `mapstructure:"cache_size"`

	DatabasePath string `mapstructure:"database_path"` // empty disables snapshot history

	MaxViews       int `mapstructure:"max_views"`
	ViewIdleTTLSec int `mapstructure:"view_idle_ttl_sec"` // mounted views unused for this long are evicted

	TracingEndpoint     string  `mapstructure:"tracing_endpoint"` // OTLP collector host:port; empty = disabled
	TracingProtocol     string  `mapstructure:"tracing_protocol"` // grpc or http
	TracingSamplingRate float64 `mapstructure:"tracing_sampling_rate"`

	RateLimitGetPerMin   int `mapstructure:"rate_limit_get_per_min"`
	RateLimitWritePerMin int `mapstructure:"rate_limit_write_per_min"`
}

const envPrefix = "KUBILITICS_TOPOLOGY"

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8190)
	v.SetDefault("allowed_origins", []string{"*"})
	v.SetDefault("request_timeout_sec", 30)
	v.SetDefault("shutdown_timeout_sec", 15)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("log_file", "")
	v.SetDefault("default_layout", "stack")
	v.SetDefault("fixtures_dir", "")
	v.SetDefault("kubernetes_enabled", false)
	v.SetDefault("kubeconfig_path", "")
	v.SetDefault("kube_context", "")
	v.SetDefault("k8s_timeout_sec", 30)
	v.SetDefault("k8s_max_nodes", 2000)
	v.SetDefault("k8s_retry_attempts", 3)
	v.SetDefault("cache_ttl_sec", 30)
	v.SetDefault("cache_size", 128)
	v.SetDefault("database_path", "./topology.db")
	v.SetDefault("max_views", 1000)
	v.SetDefault("view_idle_ttl_sec", 1800)
	v.SetDefault("tracing_endpoint", "")
	v.SetDefault("tracing_protocol", "http")
	v.SetDefault("tracing_sampling_rate", 0.1)
	v.SetDefault("rate_limit_get_per_min", 600)
	v.SetDefault("rate_limit_write_per_min", 240)
}

// Load reads config from path (or the standard search paths when empty),
// then environment variables prefixed KUBILITICS_TOPOLOGY_.
func Load(path string) (*Config, *viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("topology")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/kubilitics/")
		v.AddConfigPath("$HOME/.kubilitics")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; using defaults and env vars
	}

	cfg, err := unmarshal(v)
	if err != nil {
		return nil, nil, err
	}
	return cfg, v, nil
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port must be between 1 and 65535, got %d", c.Port))
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level must be debug, info, warn or error, got %q", c.LogLevel))
	}
	if c.LogFormat != "json" && c.LogFormat != "console" {
		errs = append(errs, fmt.Errorf("log_format must be json or console, got %q", c.LogFormat))
	}
	if c.DefaultLayout == "" {
		errs = append(errs, errors.New("default_layout must not be empty"))
	}
	if c.CacheTTLSec < 0 || c.CacheSize < 0 {
		errs = append(errs, errors.New("cache_ttl_sec and cache_size must not be negative"))
	}
	if c.MaxViews <= 0 {
		errs = append(errs, fmt.Errorf("max_views must be positive, got %d", c.MaxViews))
	}
	if c.TracingProtocol != "grpc" && c.TracingProtocol != "http" {
		errs = append(errs, fmt.Errorf("tracing_protocol must be grpc or http, got %q", c.TracingProtocol))
	}
	if c.TracingSamplingRate < 0 || c.TracingSamplingRate > 1 {
		errs = append(errs, fmt.Errorf("tracing_sampling_rate must be within [0,1], got %v", c.TracingSamplingRate))
	}
	return errors.Join(errs...)
}

// Watch reloads the config file on change and passes the new config to
// onChange. Invalid edits are reported through onError and otherwise ignored.
func Watch(v *viper.Viper, onChange func(*Config), onError func(error)) {
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := unmarshal(v)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
}
