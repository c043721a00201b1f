package middleware

import (
    "bytes"
    "context"
    "crypto/sha1"
    "encoding/json"
    "fmt"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/studio-booking/internal/config"
)

// captureWriter tees the response body (up to limit bytes) while
// forwarding it to the client.
type captureWriter struct {
    http.ResponseWriter
    status    int
    buf       bytes.Buffer
    limit     int
    truncated bool
}

func (cw *captureWriter) WriteHeader(code int) {
    cw.status = code
    cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
    if cw.limit > 0 && cw.buf.Len()+len(b) > cw.limit {
        cw.truncated = true
    } else {
        cw.buf.Write(b)
    }
    return cw.ResponseWriter.Write(b)
}

// cachedResponse is the stored form of one response.
type cachedResponse struct {
    Status int         `json:"s"`
    Header http.Header `json:"h"`
    Body   []byte      `json:"b"`
}

// ResponseCache caches public catalog responses in Redis.  Staff writes
// call Purge so that edits show up before the TTL runs out.
type ResponseCache struct {
    cfg config.CacheConfig
    rdb *redis.Client
}

// NewResponseCache returns a cache; a nil client disables it.
func NewResponseCache(cfg config.CacheConfig, rdb *redis.Client) *ResponseCache {
    if cfg.TTL <= 0 {
        cfg.TTL = 30 * time.Second
    }
    return &ResponseCache{cfg: cfg, rdb: rdb}
}

func (rc *ResponseCache) namespace() string { return rc.cfg.Prefix + ":http" }

// key hashes the parts of the request selected by the key strategy.
func (rc *ResponseCache) key(c echo.Context) string {
    r := c.Request()
    var parts []string
    switch strings.ToLower(rc.cfg.KeyStrategy) {
    case "route":
        parts = []string{c.Path()}
    case "method_route":
        parts = []string{r.Method, c.Path()}
    case "method_route_query":
        parts = []string{r.Method, c.Path(), r.URL.RawQuery}
    default: // route_query
        parts = []string{c.Path(), r.URL.RawQuery}
    }
    // Path params are part of the identity of a response.
    for _, n := range c.ParamNames() {
        parts = append(parts, n+"="+c.Param(n))
    }
    sum := sha1.Sum([]byte(strings.Join(parts, "|")))
    return fmt.Sprintf("%s:%x", rc.namespace(), sum[:])
}

// Middleware serves cached 200 responses and stores fresh ones.
func (rc *ResponseCache) Middleware() echo.MiddlewareFunc {
    if rc == nil || rc.rdb == nil || !rc.cfg.Enabled {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if !rc.cfg.Cacheable(c.Request().Method) {
                return next(c)
            }
            ctx := c.Request().Context()
            key := rc.key(c)

            if raw, err := rc.rdb.Get(ctx, key).Bytes(); err == nil {
                var cr cachedResponse
                if json.Unmarshal(raw, &cr) == nil {
                    h := c.Response().Header()
                    for k, vals := range cr.Header {
                        if strings.EqualFold(k, echo.HeaderContentLength) {
                            continue
                        }
                        h[k] = vals
                    }
                    h.Set("X-Cache", "HIT")
                    return c.Blob(cr.Status, h.Get(echo.HeaderContentType), cr.Body)
                }
            }

            cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: rc.cfg.MaxBodyBytes}
            c.Response().Writer = cw
            c.Response().Header().Set("X-Cache", "MISS")
            if err := next(c); err != nil {
                return err
            }
            if cw.status != http.StatusOK || cw.truncated {
                return nil
            }
            hdr := c.Response().Header().Clone()
            hdr.Del("X-Cache")
            payload, err := json.Marshal(cachedResponse{Status: cw.status, Header: hdr, Body: cw.buf.Bytes()})
            if err == nil {
                if err := rc.rdb.Set(context.WithoutCancel(ctx), key, payload, rc.cfg.TTL).Err(); err != nil {
                    c.Logger().Warnf("cache: store %s: %v", key, err)
                }
            }
            return nil
        }
    }
}

// Purge drops every cached response.
func (rc *ResponseCache) Purge(ctx context.Context) {
    if rc == nil || rc.rdb == nil {
        return
    }
    iter := rc.rdb.Scan(ctx, 0, rc.namespace()+":*", 100).Iterator()
    var keys []string
    for iter.Next(ctx) {
        keys = append(keys, iter.Val())
    }
    if len(keys) > 0 {
        _ = rc.rdb.Del(ctx, keys...).Err()
    }
}
