package config

import (
    "strings"
    "time"
)

// CacheConfig covers everything the service keeps in Redis besides rate
// limit buckets: public catalog responses and the per-user derived state
// (active credit, active disclaimer).
//
// Public responses are cached for TTL under Prefix; derived state uses
// CreditTTL and DisclaimerTTL and is invalidated by version bumps rather
// than by expiry.
type CacheConfig struct {
    Enabled       bool
    Methods       map[string]bool
    TTL           time.Duration
    KeyStrategy   string
    Prefix        string
    MaxBodyBytes  int
    CreditTTL     time.Duration
    DisclaimerTTL time.Duration
}

// LoadCacheConfig reads CACHE_* variables.
func LoadCacheConfig() CacheConfig {
    return CacheConfig{
        Enabled:       envBool("CACHE_ENABLED", true),
        Methods:       parseMethods(envStr("CACHE_METHODS", "GET")),
        TTL:           envDur("CACHE_TTL", 30*time.Second),
        KeyStrategy:   envStr("CACHE_KEY_STRATEGY", "route_query"),
        Prefix:        envStr("CACHE_PREFIX", "studio"),
        MaxBodyBytes:  envInt("CACHE_MAX_BODY_BYTES", 1<<20),
        CreditTTL:     envDur("CREDIT_CACHE_TTL", 10*time.Minute),
        DisclaimerTTL: envDur("DISCLAIMER_CACHE_TTL", 10*time.Minute),
    }
}

// Cacheable reports whether responses to method may be cached.
func (c CacheConfig) Cacheable(method string) bool {
    return c.Enabled && c.Methods[strings.ToUpper(method)]
}

func parseMethods(s string) map[string]bool {
    m := map[string]bool{}
    for _, p := range strings.Split(s, ",") {
        p = strings.TrimSpace(strings.ToUpper(p))
        if p != "" {
            m[p] = true
        }
    }
    return m
}
