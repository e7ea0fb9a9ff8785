package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	TokenBackendFile   = "file"
	TokenBackendRedis  = "redis"
	TokenBackendMemory = "memory"
)

type Config struct {
	ServerHost              string
	ServerPort              string
	ServerReadHeaderTimeout time.Duration
	ServerWriteTimeout      time.Duration
	ServerIdleTimeout       time.Duration
	RequestTimeout          time.Duration

	APIBaseURL             string
	APITimeout             time.Duration
	APIMaxRetries          int
	APIBreakerFailureRatio float64
	APIBreakerMinRequests  uint32
	APIBreakerOpenTimeout  time.Duration

	TokenBackend  string
	TokenFile     string
	TokenSecret   string
	RedisAddr     string
	RedisDB       int
	RedisTokenKey string

	CORSOrigins      []string
	RateLimitRPM     int
	AuthRateLimitRPM int

	LogLevel  string
	LogFormat string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ServerHost:              getEnv("SERVER_HOST", "127.0.0.1"),
		ServerPort:              getEnv("SERVER_PORT", "3000"),
		ServerReadHeaderTimeout: getDuration("SERVER_READ_HEADER_TIMEOUT", 10*time.Second),
		ServerWriteTimeout:      getDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		ServerIdleTimeout:       getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		RequestTimeout:          getDuration("REQUEST_TIMEOUT", 30*time.Second),
		APIBaseURL:              strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:8080/api"), "/"),
		APITimeout:              getDuration("API_TIMEOUT", 15*time.Second),
		APIMaxRetries:           getInt("API_MAX_RETRIES", 2),
		APIBreakerFailureRatio:  getFloat("API_BREAKER_FAILURE_RATIO", 0.5),
		APIBreakerMinRequests:   uint32(getInt("API_BREAKER_MIN_REQUESTS", 5)),
		APIBreakerOpenTimeout:   getDuration("API_BREAKER_OPEN_TIMEOUT", 30*time.Second),
		TokenBackend:            strings.ToLower(getEnv("TOKEN_BACKEND", TokenBackendFile)),
		TokenFile:               getEnv("TOKEN_FILE", "./state/session.token"),
		TokenSecret:             strings.TrimSpace(os.Getenv("TOKEN_SECRET")),
		RedisAddr:               getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:                 getInt("REDIS_DB", 0),
		RedisTokenKey:           getEnv("REDIS_TOKEN_KEY", "support-portal:session:token"),
		CORSOrigins:             splitCSV(os.Getenv("CORS_ORIGINS")),
		RateLimitRPM:            getInt("RATE_LIMIT_RPM", 0),
		AuthRateLimitRPM:        getInt("AUTH_RATE_LIMIT_RPM", 10),
		LogLevel:                strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:               strings.ToLower(getEnv("LOG_FORMAT", "pretty")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT cannot be empty")
	}

	if strings.TrimSpace(c.APIBaseURL) == "" {
		return fmt.Errorf("API_BASE_URL cannot be empty")
	}

	parsed, err := url.Parse(c.APIBaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("API_BASE_URL must be an absolute URL, got %q", c.APIBaseURL)
	}

	if c.APITimeout <= 0 {
		return fmt.Errorf("API_TIMEOUT must be positive")
	}

	if c.APIMaxRetries < 0 {
		return fmt.Errorf("API_MAX_RETRIES cannot be negative")
	}

	if c.APIBreakerFailureRatio <= 0 || c.APIBreakerFailureRatio > 1 {
		return fmt.Errorf("API_BREAKER_FAILURE_RATIO must be in (0, 1]")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	switch c.TokenBackend {
	case TokenBackendFile:
		if strings.TrimSpace(c.TokenFile) == "" {
			return fmt.Errorf("TOKEN_FILE cannot be empty")
		}
	case TokenBackendRedis:
		if strings.TrimSpace(c.RedisAddr) == "" {
			return fmt.Errorf("REDIS_ADDR cannot be empty")
		}
		if strings.TrimSpace(c.RedisTokenKey) == "" {
			return fmt.Errorf("REDIS_TOKEN_KEY cannot be empty")
		}
	case TokenBackendMemory:
	default:
		return fmt.Errorf("TOKEN_BACKEND must be one of file, redis, memory, got %q", c.TokenBackend)
	}

	if c.LogFormat != "pretty" && c.LogFormat != "json" {
		return fmt.Errorf("LOG_FORMAT must be pretty or json")
	}

	return nil
}

func getEnv(key string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	return v
}

func getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getFloat(key string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}

	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return v
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}

	return out
}
