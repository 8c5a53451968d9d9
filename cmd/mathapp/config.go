package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds server configuration
type Config struct {
	Port            string        `yaml:"port"`
	EnableTLS       bool          `yaml:"enable_tls"`
	CertFile        string        `yaml:"cert_file"`
	KeyFile         string        `yaml:"key_file"`
	LogRequests     bool          `yaml:"log_requests"`
	LogHeaders      bool          `yaml:"log_headers"`
	RateLimitRPS    float64       `yaml:"rate_limit_rps"`
	RateLimitBurst  int           `yaml:"rate_limit_burst"`
	RuntimeMetrics  bool          `yaml:"runtime_metrics"`
	MetricsPrefix   string        `yaml:"metrics_prefix"`
	EnableWebSocket bool          `yaml:"enable_websocket"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

func defaultConfig() Config {
	return Config{
		Port:            "3000",
		CertFile:        "server.crt",
		KeyFile:         "server.key",
		LogRequests:     true,
		RuntimeMetrics:  true,
		MetricsPrefix:   "mathapp_",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// loadConfig builds a Config from defaults, an optional .env file, the YAML
// file named by MATHAPP_CONFIG_FILE and finally the environment.
func loadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("Failed to load .env file: %v", err)
	}

	cfg := defaultConfig()
	if path := os.Getenv("MATHAPP_CONFIG_FILE"); path != "" {
		if err := loadConfigFile(path, &cfg); err != nil {
			return cfg, err
		}
	}
	applyEnv(&cfg)
	return cfg, cfg.validate()
}

func loadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.EnableTLS = parseBool(os.Getenv("ENABLE_TLS"), cfg.EnableTLS)
	cfg.CertFile = getEnv("CERT_FILE", cfg.CertFile)
	cfg.KeyFile = getEnv("KEY_FILE", cfg.KeyFile)
	cfg.LogRequests = parseBool(os.Getenv("LOG_REQUESTS"), cfg.LogRequests)
	cfg.LogHeaders = parseBool(os.Getenv("LOG_HEADERS"), cfg.LogHeaders)
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		cfg.RateLimitRPS = parseFloat64(v)
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		cfg.RateLimitBurst = int(parseInt64(v))
	}
	cfg.RuntimeMetrics = parseBool(os.Getenv("RUNTIME_METRICS"), cfg.RuntimeMetrics)
	cfg.MetricsPrefix = getEnv("METRICS_PREFIX", cfg.MetricsPrefix)
	cfg.EnableWebSocket = parseBool(os.Getenv("ENABLE_WEBSOCKET"), cfg.EnableWebSocket)
	cfg.ReadTimeout = parseDuration(os.Getenv("READ_TIMEOUT"), cfg.ReadTimeout)
	cfg.WriteTimeout = parseDuration(os.Getenv("WRITE_TIMEOUT"), cfg.WriteTimeout)
	cfg.IdleTimeout = parseDuration(os.Getenv("IDLE_TIMEOUT"), cfg.IdleTimeout)
	cfg.ShutdownTimeout = parseDuration(os.Getenv("SHUTDOWN_TIMEOUT"), cfg.ShutdownTimeout)
}

func (c Config) validate() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid port %q", c.Port)
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return fmt.Errorf("rate limit must not be negative (rps=%v, burst=%d)", c.RateLimitRPS, c.RateLimitBurst)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt64(s string) int64 {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	return 0
}

func parseFloat64(s string) float64 {
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return 0
}

func parseBool(s string, fallback bool) bool {
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return fallback
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return fallback
}
