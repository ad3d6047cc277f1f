package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates every setting the server reads from the environment.
type Config struct {
	Server    ServerConfig
	Verify    VerifyConfig
	Extractor ExtractorConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	verify, err := loadVerifyConfig()
	if err != nil {
		return nil, err
	}

	extractor, err := loadExtractorConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, Verify: verify, Extractor: extractor}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Accept ":8080" or "127.0.0.1:8080" verbatim.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// VerifyConfig tunes matching and session policy.
type VerifyConfig struct {
	MatchThreshold float64
	Capacity       int
	SweepInterval  time.Duration
	MinDuration    time.Duration
	MaxDuration    time.Duration
}

func loadVerifyConfig() (VerifyConfig, error) {
	cfg := VerifyConfig{
		MatchThreshold: 0.6,
		Capacity:       10,
		SweepInterval:  60 * time.Second,
		MinDuration:    5 * time.Minute,
		MaxDuration:    120 * time.Minute,
	}

	if threshold, err := parseOptionalFloatEnv("VERIFY_MATCH_THRESHOLD"); err != nil {
		return VerifyConfig{}, err
	} else if threshold != nil {
		if *threshold <= 0 {
			return VerifyConfig{}, fmt.Errorf("VERIFY_MATCH_THRESHOLD must be positive, got %v", *threshold)
		}
		cfg.MatchThreshold = *threshold
	}

	if capacity, err := parseOptionalIntEnv("VERIFY_SESSION_CAPACITY"); err != nil {
		return VerifyConfig{}, err
	} else if capacity != nil {
		if *capacity < 1 {
			return VerifyConfig{}, fmt.Errorf("VERIFY_SESSION_CAPACITY must be at least 1, got %d", *capacity)
		}
		cfg.Capacity = *capacity
	}

	if sweep, err := parseOptionalIntEnv("VERIFY_SWEEP_INTERVAL_SECONDS"); err != nil {
		return VerifyConfig{}, err
	} else if sweep != nil {
		if *sweep < 1 {
			return VerifyConfig{}, fmt.Errorf("VERIFY_SWEEP_INTERVAL_SECONDS must be at least 1, got %d", *sweep)
		}
		cfg.SweepInterval = time.Duration(*sweep) * time.Second
	}

	if minutes, err := parseOptionalIntEnv("VERIFY_MIN_DURATION_MINUTES"); err != nil {
		return VerifyConfig{}, err
	} else if minutes != nil {
		cfg.MinDuration = time.Duration(*minutes) * time.Minute
	}

	if minutes, err := parseOptionalIntEnv("VERIFY_MAX_DURATION_MINUTES"); err != nil {
		return VerifyConfig{}, err
	} else if minutes != nil {
		cfg.MaxDuration = time.Duration(*minutes) * time.Minute
	}

	if cfg.MinDuration <= 0 || cfg.MinDuration > cfg.MaxDuration {
		return VerifyConfig{}, fmt.Errorf("invalid session duration bounds: min=%s max=%s", cfg.MinDuration, cfg.MaxDuration)
	}

	return cfg, nil
}

// ExtractorConfig describes the embedding sidecar endpoint. Enabled is
// false when no URL is configured; clients must then supply embeddings
// themselves.
type ExtractorConfig struct {
	BaseURL string
	Timeout time.Duration
	Enabled bool
}

func loadExtractorConfig() (ExtractorConfig, error) {
	timeout, err := parseOptionalIntEnv("EXTRACTOR_TIMEOUT_SECONDS")
	if err != nil {
		return ExtractorConfig{}, err
	}
	timeoutSeconds := 30
	if timeout != nil {
		timeoutSeconds = *timeout
	}

	baseURL := strings.TrimSpace(os.Getenv("EXTRACTOR_BASE_URL"))

	return ExtractorConfig{
		BaseURL: baseURL,
		Timeout: time.Duration(timeoutSeconds) * time.Second,
		Enabled: baseURL != "",
	}, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
