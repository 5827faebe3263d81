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

// ConfigPath is the default location of the auth service config file.
const ConfigPath = "config.yaml"

// PathFromEnv returns AUTH_CONFIG or ConfigPath.
func PathFromEnv() string {
	if v := strings.TrimSpace(os.Getenv("AUTH_CONFIG")); v != "" {
		return v
	}
	return ConfigPath
}

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port                       string   `yaml:"port"`
	DatabaseURL                string   `yaml:"databaseURL"`
	RedisAddr                  string   `yaml:"redisAddr"`
	RedisPassword              string   `yaml:"redisPassword"`
	RedisDB                    int      `yaml:"redisDB"`
	LogLevel                   string   `yaml:"logLevel"`
	AllowedOrigins             []string `yaml:"allowedOrigins"`
	TrustedProxies             []string `yaml:"trustedProxies"`
	ShutdownGrace              string   `yaml:"shutdownGrace"`
	AccessTTL                  string   `yaml:"accessTTL"`
	RefreshTTL                 string   `yaml:"refreshTTL"`
	JWTPrivateKeyPath          string   `yaml:"jwtPrivateKeyPath"`
	JWTKeyID                   string   `yaml:"jwtKeyId"`
	JWTVerifyPublicKeys        string   `yaml:"jwtVerifyPublicKeys"`
	JWTIssuer                  string   `yaml:"jwtIssuer"`
	JWTAudience                string   `yaml:"jwtAudience"`
	JWTLeeway                  string   `yaml:"jwtLeeway"`
	RegisterRateLimitPerMinute int      `yaml:"registerRateLimitPerMinute"`
	LoginRateLimitPerMinute    int      `yaml:"loginRateLimitPerMinute"`
	RefreshRateLimitPerMinute  int      `yaml:"refreshRateLimitPerMinute"`
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
	strs := map[string]*string{
		"AUTH_PORT":              &cfg.Port,
		"DATABASE_URL":           &cfg.DatabaseURL,
		"REDIS_ADDR":             &cfg.RedisAddr,
		"REDIS_PASSWORD":         &cfg.RedisPassword,
		"LOG_LEVEL":              &cfg.LogLevel,
		"JWT_PRIVATE_KEY_PATH":   &cfg.JWTPrivateKeyPath,
		"JWT_KEY_ID":             &cfg.JWTKeyID,
		"JWT_VERIFY_PUBLIC_KEYS": &cfg.JWTVerifyPublicKeys,
		"JWT_ISSUER":             &cfg.JWTIssuer,
		"JWT_AUDIENCE":           &cfg.JWTAudience,
		"JWT_LEEWAY":             &cfg.JWTLeeway,
		"AUTH_ACCESS_TTL":        &cfg.AccessTTL,
		"AUTH_REFRESH_TTL":       &cfg.RefreshTTL,
	}
	for env, dst := range strs {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}
	ints := map[string]*int{
		"AUTH_REGISTER_RATE_LIMIT_PER_MINUTE": &cfg.RegisterRateLimitPerMinute,
		"AUTH_LOGIN_RATE_LIMIT_PER_MINUTE":    &cfg.LoginRateLimitPerMinute,
		"AUTH_REFRESH_RATE_LIMIT_PER_MINUTE":  &cfg.RefreshRateLimitPerMinute,
	}
	for env, dst := range ints {
		if v := os.Getenv(env); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("TRUSTED_PROXIES"); v != "" {
		cfg.TrustedProxies = splitList(v)
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if cfg.DatabaseURL == "" {
		return errors.New("config: databaseURL is required (set DATABASE_URL)")
	}
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		return errors.New("config: redisAddr is required for refresh tokens and revocation")
	}
	if cfg.JWTPrivateKeyPath == "" {
		return errors.New("config: jwtPrivateKeyPath is required (set JWT_PRIVATE_KEY_PATH)")
	}
	if cfg.RegisterRateLimitPerMinute < 0 || cfg.LoginRateLimitPerMinute < 0 || cfg.RefreshRateLimitPerMinute < 0 {
		return errors.New("config: rate limits must be >= 0")
	}
	for field, raw := range map[string]string{
		"shutdownGrace": cfg.ShutdownGrace,
		"accessTTL":     cfg.AccessTTL,
		"refreshTTL":    cfg.RefreshTTL,
		"jwtLeeway":     cfg.JWTLeeway,
	} {
		if _, err := ParseDuration(field, raw); err != nil {
			return err
		}
	}
	if _, err := ParseVerifyPublicKeys(cfg.JWTVerifyPublicKeys); err != nil {
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

// ParseVerifyPublicKeys parses "kid=path,kid2=path2" into a map.
func ParseVerifyPublicKeys(raw string) (map[string]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	pairs := strings.Split(raw, ",")
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		kid, path, ok := strings.Cut(pair, "=")
		kid, path = strings.TrimSpace(kid), strings.TrimSpace(path)
		if !ok || kid == "" || path == "" {
			return nil, fmt.Errorf("invalid jwtVerifyPublicKeys entry %q", pair)
		}
		out[kid] = path
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
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
