package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default location of the study service config file.
const ConfigPath = "config.yaml"

// PathFromEnv returns STUDY_CONFIG or ConfigPath.
func PathFromEnv() string {
	if v := strings.TrimSpace(os.Getenv("STUDY_CONFIG")); v != "" {
		return v
	}
	return ConfigPath
}

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port           string   `yaml:"port"`
	DatabaseURL    string   `yaml:"databaseURL"`
	RedisAddr      string   `yaml:"redisAddr"`
	RedisPassword  string   `yaml:"redisPassword"`
	RedisDB        int      `yaml:"redisDB"`
	LogLevel       string   `yaml:"logLevel"`
	AllowedOrigins []string `yaml:"allowedOrigins"`
	TrustedProxies []string `yaml:"trustedProxies"`
	ShutdownGrace  string   `yaml:"shutdownGrace"`

	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`
	PresignExpiry  string `yaml:"presignExpiry"`

	// PasswordRateLimitPerMinute caps password-protected requests per client IP.
	PasswordRateLimitPerMinute int `yaml:"passwordRateLimitPerMinute"`
	WriteRateLimitPerMinute    int `yaml:"writeRateLimitPerMinute"`
}

// Load reads config from path (defaults to config.yaml) and applies
// environment overrides.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *FileConfig) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("TRUSTED_PROXIES"); v != "" {
		cfg.TrustedProxies = splitList(v)
	}
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		cfg.MinioEndpoint = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.MinioAccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.MinioSecretKey = v
	}
	if v := os.Getenv("MINIO_BUCKET"); v != "" {
		cfg.MinioBucket = v
	}
	if v := os.Getenv("MINIO_USE_SSL"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.MinioUseSSL = b
		}
	}
	if v := os.Getenv("STUDY_PASSWORD_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PasswordRateLimitPerMinute = n
		}
	}
	if v := os.Getenv("STUDY_WRITE_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.WriteRateLimitPerMinute = n
		}
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if cfg.DatabaseURL == "" {
		return errors.New("config: databaseURL is required (set DATABASE_URL)")
	}
	if (cfg.PasswordRateLimitPerMinute > 0 || cfg.WriteRateLimitPerMinute > 0) && strings.TrimSpace(cfg.RedisAddr) == "" {
		return errors.New("config: redisAddr is required when rate limits are enabled")
	}
	if cfg.PasswordRateLimitPerMinute < 0 || cfg.WriteRateLimitPerMinute < 0 {
		return errors.New("config: rate limits must be >= 0")
	}
	if cfg.MinioEndpoint != "" && (cfg.MinioBucket == "" || cfg.MinioAccessKey == "" || cfg.MinioSecretKey == "") {
		return errors.New("config: minioBucket, minioAccessKey and minioSecretKey are required with minioEndpoint")
	}
	if _, err := ParseDuration("shutdownGrace", cfg.ShutdownGrace); err != nil {
		return err
	}
	if _, err := ParseDuration("presignExpiry", cfg.PresignExpiry); err != nil {
		return err
	}
	return nil
}

// ParseDuration parses an optional duration field; empty means zero.
func ParseDuration(field, raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	dur, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s duration: %w", field, err)
	}
	if dur < 0 {
		return 0, fmt.Errorf("config: %s must not be negative", field)
	}
	return dur, nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
