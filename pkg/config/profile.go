package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Mindburn-Labs/verdict/core/pkg/ratelimit"
	"github.com/Mindburn-Labs/verdict/core/pkg/verdict"
)

// ReliabilityProfile is the operator-tuned YAML profile: solver bounds,
// cache sizing, rate limits and the confidence-blending weights. Every
// field has a working default, so an absent profile is a valid profile.
type ReliabilityProfile struct {
	Solver    SolverConfig    `yaml:"solver" json:"solver"`
	Cache     CacheConfig     `yaml:"cache" json:"cache"`
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
	Weights   verdict.Weights `yaml:"weights" json:"weights"`
	Audit     AuditConfig     `yaml:"audit" json:"audit"`
	// EngineReliability scales each engine's reported confidence,
	// keyed by engine name, scores in (0,1].
	EngineReliability map[string]float64 `yaml:"engine_reliability" json:"engine_reliability"`
}

// SolverConfig bounds one solve.
type SolverConfig struct {
	TimeoutMS millis `yaml:"timeout_ms" json:"timeout_ms"`
}

// Timeout returns the configured solver bound.
func (s SolverConfig) Timeout() time.Duration { return s.TimeoutMS.Duration() }

// CacheConfig sizes the result cache.
type CacheConfig struct {
	Capacity int    `yaml:"capacity" json:"capacity"`
	TTLMS    millis `yaml:"ttl_ms" json:"ttl_ms"`
}

// TTL returns the configured entry lifetime.
func (c CacheConfig) TTL() time.Duration { return c.TTLMS.Duration() }

// RateLimitConfig is the per-caller sliding window.
type RateLimitConfig struct {
	Requests int    `yaml:"requests" json:"requests"`
	WindowMS millis `yaml:"window_ms" json:"window_ms"`
}

// Policy converts to the limiter's policy type.
func (r RateLimitConfig) Policy() ratelimit.Policy {
	return ratelimit.Policy{Requests: r.Requests, Window: r.WindowMS.Duration()}
}

// AuditConfig sizes the audit recorder buffer.
type AuditConfig struct {
	BufferSize int `yaml:"buffer_size" json:"buffer_size"`
}

// DefaultProfile returns the stock tunables.
func DefaultProfile() *ReliabilityProfile {
	return &ReliabilityProfile{
		Solver:    SolverConfig{TimeoutMS: 5000},
		Cache:     CacheConfig{Capacity: 1024, TTLMS: millis(time.Hour / time.Millisecond)},
		RateLimit: RateLimitConfig{Requests: 60, WindowMS: millis(time.Minute / time.Millisecond)},
		Weights:   verdict.DefaultWeights(),
		Audit:     AuditConfig{BufferSize: 256},
	}
}

// LoadProfile reads a profile YAML, layering it over the defaults. An
// empty path returns the defaults unchanged.
func LoadProfile(path string) (*ReliabilityProfile, error) {
	profile := DefaultProfile()
	if path == "" {
		return profile, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load reliability profile: %w", err)
	}
	if err := yaml.Unmarshal(data, profile); err != nil {
		return nil, fmt.Errorf("parse reliability profile: %w", err)
	}
	return profile, nil
}
