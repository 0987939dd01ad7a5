// Package config assembles runtime configuration: environment variables
// for deployment concerns, an optional YAML reliability profile for
// tunables that operators version-control.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds server configuration from the environment.
type Config struct {
	Port         string
	LogLevel     string
	AuditDBPath  string
	FactsPath    string
	ProfilePath  string
	RedisAddr    string
	RedisDB      int
	OTLPEndpoint string
}

// Load reads configuration from environment variables, with local-dev
// defaults. Empty RedisAddr selects the in-process rate-limit store.
func Load() *Config {
	return &Config{
		Port:         getenv("PORT", "8080"),
		LogLevel:     getenv("LOG_LEVEL", "INFO"),
		AuditDBPath:  getenv("AUDIT_DB_PATH", "verdict_audit.db"),
		FactsPath:    os.Getenv("FACTS_PATH"),
		ProfilePath:  os.Getenv("RELIABILITY_PROFILE"),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		RedisDB:      getenvInt("REDIS_DB", 0),
		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// Durations in the profile are given in milliseconds to keep the YAML
// free of unit-suffix parsing.
type millis int64

func (m millis) Duration() time.Duration { return time.Duration(m) * time.Millisecond }
