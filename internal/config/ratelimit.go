package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// RateLimitConfig drives the Redis token bucket guarding the public write
// endpoints (checkout and PIN login).
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	KeyStrategy    string
	Prefix         string
	Debug          bool
}

// LoadRateLimitConfig reads the RATE_LIMIT_* variables. scope is appended to
// the key prefix so each guarded route family gets its own buckets, and a
// scoped variable (e.g. RATE_LIMIT_PIN_CAPACITY) overrides the shared one.
func LoadRateLimitConfig(scope string) RateLimitConfig {
	key := func(name string) []string {
		if scope == "" {
			return []string{"RATE_LIMIT_" + name}
		}
		return []string{"RATE_LIMIT_" + strings.ToUpper(scope) + "_" + name, "RATE_LIMIT_" + name}
	}
	cfg := RateLimitConfig{
		Enabled:        envBool(first(key("ENABLED")), true),
		Capacity:       envInt(first(key("CAPACITY")), 30),
		RefillTokens:   envInt(first(key("REFILL_TOKENS")), 1),
		RefillInterval: envDur(first(key("REFILL_INTERVAL")), 2*time.Second),
		TTL:            envDur(first(key("TTL")), 10*time.Minute),
		KeyStrategy:    envStr(first(key("KEY_STRATEGY")), "ip_route"),
		Prefix:         envStr("RATE_LIMIT_PREFIX", "rl"),
		Debug:          envBool("RATE_LIMIT_DEBUG", false),
	}
	if scope != "" {
		cfg.Prefix += ":" + scope
	}
	if cfg.Capacity < 1 {
		cfg.Capacity = 1
	}
	if cfg.RefillTokens < 1 {
		cfg.RefillTokens = 1
	}
	if cfg.RefillInterval <= 0 {
		cfg.RefillInterval = time.Second
	}
	if minTTL := 5 * cfg.RefillInterval; cfg.TTL < minTTL {
		cfg.TTL = minTTL
	}
	return cfg
}

// first returns the first variable name in keys that is set, or the last one
// so the caller's default applies.
func first(keys []string) string {
	for _, k := range keys {
		if os.Getenv(k) != "" {
			return k
		}
	}
	return keys[len(keys)-1]
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	switch strings.ToLower(os.Getenv(k)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
