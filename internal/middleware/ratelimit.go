package middleware

import (
    "fmt"
    "math"
    "net/http"
    "strconv"
    "strings"
    "sync"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
    "golang.org/x/time/rate"

    "github.com/iliyamo/studio-booking/internal/config"
)

// bucketScript refills and takes one token atomically.  It returns
// {allowed, tokens_left, retry_after_ms}.
var bucketScript = redis.NewScript(`
    local key = KEYS[1]
    local now_ms = tonumber(ARGV[1])
    local capacity = tonumber(ARGV[2])
    local refill_tokens = tonumber(ARGV[3])
    local interval_ms = tonumber(ARGV[4])
    local ttl_seconds = tonumber(ARGV[5])

    local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
    local tokens = tonumber(state[1])
    local last_refill = tonumber(state[2])
    if tokens == nil or last_refill == nil then
        tokens = capacity
        last_refill = now_ms
    end

    local elapsed = math.max(0, now_ms - last_refill)
    local intervals = math.floor(elapsed / interval_ms)
    if intervals > 0 then
        tokens = math.min(capacity, tokens + (intervals * refill_tokens))
        last_refill = last_refill + (intervals * interval_ms)
    end

    local allowed = 0
    local retry_after_ms = 0
    if tokens > 0 then
        allowed = 1
        tokens = tokens - 1
    else
        retry_after_ms = math.max(0, interval_ms - (now_ms - last_refill))
    end

    redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
    redis.call('EXPIRE', key, ttl_seconds)
    return { allowed, tokens, retry_after_ms }
`)

// decision is the outcome of one bucket take.
type decision struct {
    allowed   bool
    remaining int64
    retry     time.Duration
}

// LocalLimiter keeps one x/time/rate limiter per key in process memory.
// It is the fallback when Redis is unavailable; limits are then per
// instance rather than global.
type LocalLimiter struct {
    mu       sync.Mutex
    cfg      config.RateLimitConfig
    limiters map[string]*localEntry
}

type localEntry struct {
    lim  *rate.Limiter
    seen time.Time
}

// NewLocalLimiter returns an empty LocalLimiter.
func NewLocalLimiter(cfg config.RateLimitConfig) *LocalLimiter {
    return &LocalLimiter{cfg: cfg, limiters: map[string]*localEntry{}}
}

func (l *LocalLimiter) take(key string, now time.Time) decision {
    l.mu.Lock()
    defer l.mu.Unlock()
    e, ok := l.limiters[key]
    if !ok {
        e = &localEntry{lim: rate.NewLimiter(rate.Limit(l.cfg.PerSecond()), l.cfg.Capacity)}
        l.limiters[key] = e
    }
    e.seen = now
    l.evict(now)

    r := e.lim.ReserveN(now, 1)
    if delay := r.DelayFrom(now); delay > 0 {
        r.CancelAt(now)
        return decision{retry: delay}
    }
    return decision{allowed: true, remaining: int64(e.lim.TokensAt(now))}
}

// evict drops limiters idle for longer than the configured TTL.
func (l *LocalLimiter) evict(now time.Time) {
    for k, e := range l.limiters {
        if now.Sub(e.seen) > l.cfg.TTL {
            delete(l.limiters, k)
        }
    }
}

// RateLimit applies a token bucket per key (see config KeyStrategy).  The
// bucket lives in Redis; on a nil client or a script error the local
// limiter decides when LocalFallback is set, otherwise the request passes.
func RateLimit(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
    if !cfg.Enabled {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    var local *LocalLimiter
    if cfg.LocalFallback {
        local = NewLocalLimiter(cfg)
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            key := buildRateKey(cfg, c)
            now := time.Now()

            d, ok := redisTake(c, cfg, rdb, key, now)
            if !ok {
                if local == nil {
                    return next(c)
                }
                d = local.take(key, now)
            }

            h := c.Response().Header()
            h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
            h.Set("X-RateLimit-Remaining", strconv.FormatInt(d.remaining, 10))
            if cfg.Debug {
                h.Set("X-RateLimit-Key", key)
            }
            if !d.allowed {
                secs := int(math.Ceil(d.retry.Seconds()))
                h.Set("Retry-After", strconv.Itoa(secs))
                if cfg.Debug {
                    c.Logger().Infof("[ratelimit] block key=%s retry=%s", key, d.retry)
                }
                return c.JSON(http.StatusTooManyRequests, map[string]any{
                    "error":       "too_many_requests",
                    "message":     "rate limit exceeded",
                    "retry_after": secs,
                })
            }
            return next(c)
        }
    }
}

func redisTake(c echo.Context, cfg config.RateLimitConfig, rdb *redis.Client, key string, now time.Time) (decision, bool) {
    if rdb == nil {
        return decision{}, false
    }
    vals, err := bucketScript.Run(c.Request().Context(), rdb, []string{key},
        now.UnixMilli(),
        cfg.Capacity,
        cfg.RefillTokens,
        cfg.RefillInterval.Milliseconds(),
        int64(cfg.TTL/time.Second),
    ).Slice()
    if err != nil || len(vals) != 3 {
        if cfg.Debug {
            c.Logger().Warnf("[ratelimit] redis unavailable for key=%s: %v", key, err)
        }
        return decision{}, false
    }
    return decision{
        allowed:   asInt64(vals[0]) == 1,
        remaining: asInt64(vals[1]),
        retry:     time.Duration(asInt64(vals[2])) * time.Millisecond,
    }, true
}

func asInt64(v interface{}) int64 {
    switch t := v.(type) {
    case int64:
        return t
    case string:
        n, _ := strconv.ParseInt(t, 10, 64)
        return n
    }
    n, _ := strconv.ParseInt(fmt.Sprint(v), 10, 64)
    return n
}

func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
    ip := c.RealIP()
    if ip == "" {
        ip = "unknown"
    }
    uid := "anon"
    if id, ok := UserID(c); ok {
        uid = strconv.FormatUint(id, 10)
    }
    route := c.Request().Method + " " + c.Path()

    parts := []string{cfg.Prefix}
    switch strings.ToLower(cfg.KeyStrategy) {
    case "ip":
        parts = append(parts, "ip", ip)
    case "user":
        parts = append(parts, "user", uid)
    case "route":
        parts = append(parts, "route", route)
    case "ip_user":
        parts = append(parts, "ip", ip, "user", uid)
    case "ip_route":
        parts = append(parts, "ip", ip, "route", route)
    case "user_route":
        parts = append(parts, "user", uid, "route", route)
    default:
        parts = append(parts, "ip", ip, "user", uid, "route", route)
    }
    return strings.Join(parts, ":")
}
