package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Data     DataConfig
	Logger   LoggerConfig
	Security SecurityConfig
	Upload   UploadConfig
	Forecast ForecastConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DataConfig points at an optional dataset loaded at startup.
type DataConfig struct {
	CSVFile  string
	CacheDir string
}

type LoggerConfig struct {
	Level  string
	Format string
}

type SecurityConfig struct {
	EnableRateLimit bool
	RateLimitRPS    int
	RateLimitBurst  int
	AllowedOrigins  []string
	TrustedProxies  []string
}

type UploadConfig struct {
	MaxBytes    int64
	MaxDatasets int
	DatasetTTL  time.Duration
}

type ForecastConfig struct {
	DefaultStrategy string
	DefaultHorizon  int
	MaxHorizon      int
	MaxHistory      int
	Trees           int
	Seed            uint64
	Interval        float64
}

var defaults = map[string]any{
	"server.host":             "localhost",
	"server.port":             8084,
	"server.read_timeout":     10 * time.Second,
	"server.write_timeout":    30 * time.Second,
	"server.idle_timeout":     60 * time.Second,
	"server.shutdown_timeout": 30 * time.Second,

	"data.csv_file":  "",
	"data.cache_dir": ".cache",

	"log.level":  "info",
	"log.format": "json",

	"security.rate_limit_enabled": true,
	"security.rate_limit_rps":     100,
	"security.rate_limit_burst":   10,
	"security.allowed_origins":    "http://localhost:8084",
	"security.trusted_proxies":    "127.0.0.1",

	"upload.max_bytes":    32 << 20,
	"upload.max_datasets": 20,
	"upload.dataset_ttl":  2 * time.Hour,

	"forecast.default_strategy": "tree",
	"forecast.default_horizon":  12,
	"forecast.max_horizon":      365,
	"forecast.max_history":      1095,
	"forecast.trees":            100,
	"forecast.seed":             42,
	"forecast.interval":         0.8,
}

// Load reads the configuration from environment variables and, when
// CONFIG_FILE is set, a YAML or JSON file. Environment variables win.
func Load() (*Config, error) {
	return LoadFrom(viper.New())
}

// LoadFrom is Load on a caller-owned viper instance, so command line flags
// bound to the same keys take precedence. A config file already set with
// v.SetConfigFile is read instead of CONFIG_FILE.
func LoadFrom(v *viper.Viper) (*Config, error) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("data.csv_file", "CSV_FILE", "DATA_CSV_FILE"); err != nil {
		return nil, err
	}

	file := v.ConfigFileUsed()
	if file == "" {
		file = os.Getenv("CONFIG_FILE")
	}
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", file, err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Port:            v.GetInt("server.port"),
			ReadTimeout:     v.GetDuration("server.read_timeout"),
			WriteTimeout:    v.GetDuration("server.write_timeout"),
			IdleTimeout:     v.GetDuration("server.idle_timeout"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
		Data: DataConfig{
			CSVFile:  v.GetString("data.csv_file"),
			CacheDir: v.GetString("data.cache_dir"),
		},
		Logger: LoggerConfig{
			Level:  strings.ToLower(v.GetString("log.level")),
			Format: strings.ToLower(v.GetString("log.format")),
		},
		Security: SecurityConfig{
			EnableRateLimit: v.GetBool("security.rate_limit_enabled"),
			RateLimitRPS:    v.GetInt("security.rate_limit_rps"),
			RateLimitBurst:  v.GetInt("security.rate_limit_burst"),
			AllowedOrigins:  stringSlice(v, "security.allowed_origins"),
			TrustedProxies:  stringSlice(v, "security.trusted_proxies"),
		},
		Upload: UploadConfig{
			MaxBytes:    v.GetInt64("upload.max_bytes"),
			MaxDatasets: v.GetInt("upload.max_datasets"),
			DatasetTTL:  v.GetDuration("upload.dataset_ttl"),
		},
		Forecast: ForecastConfig{
			DefaultStrategy: strings.ToLower(v.GetString("forecast.default_strategy")),
			DefaultHorizon:  v.GetInt("forecast.default_horizon"),
			MaxHorizon:      v.GetInt("forecast.max_horizon"),
			MaxHistory:      v.GetInt("forecast.max_history"),
			Trees:           v.GetInt("forecast.trees"),
			Seed:            v.GetUint64("forecast.seed"),
			Interval:        v.GetFloat64("forecast.interval"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.Logger.Level) {
		return fmt.Errorf("invalid log level %q, must be one of: %s", c.Logger.Level, strings.Join(validLogLevels, ", "))
	}

	validLogFormats := []string{"json", "text"}
	if !slices.Contains(validLogFormats, c.Logger.Format) {
		return fmt.Errorf("invalid log format %q, must be one of: %s", c.Logger.Format, strings.Join(validLogFormats, ", "))
	}

	if c.Security.RateLimitRPS <= 0 {
		return fmt.Errorf("rate limit RPS must be positive")
	}

	if c.Security.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit burst must be positive")
	}

	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("upload max bytes must be positive")
	}

	if c.Upload.MaxDatasets <= 0 {
		return fmt.Errorf("upload max datasets must be positive")
	}

	if c.Upload.DatasetTTL <= 0 {
		return fmt.Errorf("dataset TTL must be positive")
	}

	validStrategies := []string{"seasonal", "tree"}
	if !slices.Contains(validStrategies, c.Forecast.DefaultStrategy) {
		return fmt.Errorf("invalid forecast strategy %q, must be one of: %s", c.Forecast.DefaultStrategy, strings.Join(validStrategies, ", "))
	}

	if c.Forecast.MaxHorizon < 1 {
		return fmt.Errorf("forecast max horizon must be positive")
	}

	if c.Forecast.DefaultHorizon < 1 || c.Forecast.DefaultHorizon > c.Forecast.MaxHorizon {
		return fmt.Errorf("forecast default horizon must be between 1 and %d, got %d", c.Forecast.MaxHorizon, c.Forecast.DefaultHorizon)
	}

	// Two years of weekly periods is the longest seasonal minimum.
	if c.Forecast.MaxHistory < 104 {
		return fmt.Errorf("forecast max history must be at least 104 periods, got %d", c.Forecast.MaxHistory)
	}

	if c.Forecast.Trees < 1 {
		return fmt.Errorf("forecast trees must be positive")
	}

	if c.Forecast.Interval <= 0 || c.Forecast.Interval >= 1 {
		return fmt.Errorf("forecast interval must be between 0 and 1, got %g", c.Forecast.Interval)
	}

	return nil
}

// stringSlice reads a list given either as a config file sequence or as a
// comma separated string.
func stringSlice(v *viper.Viper, key string) []string {
	var raw []string
	switch value := v.Get(key).(type) {
	case string:
		raw = strings.Split(value, ",")
	default:
		raw = v.GetStringSlice(key)
	}
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
