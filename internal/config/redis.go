package config

// Redis backs rate limiting, the public response cache and the derived
// credit/disclaimer caches.  None of them is authoritative, so a Redis
// outage at startup yields a nil client and every consumer degrades.

import (
    "context"
    "crypto/tls"
    "log"
    "net"
    "time"

    "github.com/redis/go-redis/v9"
)

// RedisOptions builds client options from the environment:
//   REDIS_ADDR – host:port (default localhost:6379)
//   REDIS_HOST and REDIS_PORT – override REDIS_ADDR when both are set
//   REDIS_PASSWORD, REDIS_DB
//   REDIS_TLS – enable TLS; REDIS_TLS_INSECURE skips verification
func RedisOptions() *redis.Options {
    addr := envStr("REDIS_ADDR", "localhost:6379")
    if host, port := envStr("REDIS_HOST", ""), envStr("REDIS_PORT", ""); host != "" && port != "" {
        addr = net.JoinHostPort(host, port)
    }
    opts := &redis.Options{
        Addr:     addr,
        Password: envStr("REDIS_PASSWORD", ""),
        DB:       envInt("REDIS_DB", 0),
    }
    if envBool("REDIS_TLS", false) {
        opts.TLSConfig = &tls.Config{
            MinVersion:         tls.VersionTLS12,
            InsecureSkipVerify: envBool("REDIS_TLS_INSECURE", false),
        }
    }
    return opts
}

// NewRedisClient connects with RedisOptions and pings once.  It returns nil
// when the server cannot be reached.
func NewRedisClient() *redis.Client {
    opts := RedisOptions()
    client := redis.NewClient(opts)
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    if err := client.Ping(ctx).Err(); err != nil {
        log.Printf("redis: %s unreachable, caching and distributed rate limiting disabled: %v", opts.Addr, err)
        _ = client.Close()
        return nil
    }
    return client
}
