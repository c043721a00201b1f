package middleware

import (
    "context"
    "errors"
    "net/http"
    "net/http/httptest"
    "testing"
    "time"

    "github.com/alicebob/miniredis/v2"
    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/studio-booking/internal/config"
    "github.com/iliyamo/studio-booking/internal/identity"
    "github.com/iliyamo/studio-booking/internal/model"
    "github.com/iliyamo/studio-booking/internal/repository"
    "github.com/iliyamo/studio-booking/internal/utils"
)

const secret = "test-secret"

func serve(e *echo.Echo, method, path, token string) *httptest.ResponseRecorder {
    req := httptest.NewRequest(method, path, nil)
    if token != "" {
        req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
    }
    rec := httptest.NewRecorder()
    e.ServeHTTP(rec, req)
    return rec
}

func token(t *testing.T, uid uint64, role string) string {
    t.Helper()
    tok, err := utils.NewAccessToken(secret, uid, role, 5)
    require.NoError(t, err)
    return tok.Token
}

func TestJWTAuthAndRole(t *testing.T) {
    e := echo.New()
    e.GET("/staff", func(c echo.Context) error {
        uid, ok := UserID(c)
        require.True(t, ok)
        return c.JSON(http.StatusOK, echo.Map{"uid": uid})
    }, JWTAuth(secret), RequireRole(model.RoleStaff))

    assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodGet, "/staff", "").Code)
    assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodGet, "/staff", "garbage").Code)

    other, err := utils.NewAccessToken("other-secret", 1, model.RoleStaff, 5)
    require.NoError(t, err)
    assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodGet, "/staff", other.Token).Code)

    assert.Equal(t, http.StatusForbidden, serve(e, http.MethodGet, "/staff", token(t, 1, model.RoleStudent)).Code)

    rec := serve(e, http.MethodGet, "/staff", token(t, 7, model.RoleStaff))
    assert.Equal(t, http.StatusOK, rec.Code)
    assert.JSONEq(t, `{"uid":7}`, rec.Body.String())
}

func TestParseAccessTokenRejectsExpired(t *testing.T) {
    tok, err := utils.NewAccessToken(secret, 3, model.RoleStudent, -1)
    require.NoError(t, err)
    _, _, err = ParseAccessToken(secret, tok.Token)
    assert.Error(t, err)

    uid, role, err := ParseAccessToken(secret, token(t, 3, model.RoleStudent))
    require.NoError(t, err)
    assert.Equal(t, uint64(3), uid)
    assert.Equal(t, model.RoleStudent, role)
}

type loaderFunc func(ctx context.Context, userID uint64) (*identity.UserContext, error)

func (f loaderFunc) Load(ctx context.Context, userID uint64) (*identity.UserContext, error) {
    return f(ctx, userID)
}

func TestLoadIdentity(t *testing.T) {
    loader := loaderFunc(func(ctx context.Context, uid uint64) (*identity.UserContext, error) {
        switch uid {
        case 1:
            return identity.New(1, model.RoleStudent, []uint64{9}, nil), nil
        case 2:
            return nil, repository.ErrForbidden
        case 3:
            return nil, errors.New("db down")
        }
        return nil, repository.ErrNotFound
    })
    e := echo.New()
    e.GET("/me", func(c echo.Context) error {
        uc := Identity(c)
        return c.JSON(http.StatusOK, echo.Map{"managed": uc.ManagedUserIDs})
    }, JWTAuth(secret), LoadIdentity(loader))

    rec := serve(e, http.MethodGet, "/me", token(t, 1, model.RoleStudent))
    assert.Equal(t, http.StatusOK, rec.Code)
    assert.JSONEq(t, `{"managed":[9]}`, rec.Body.String())
    assert.Equal(t, http.StatusForbidden, serve(e, http.MethodGet, "/me", token(t, 2, model.RoleStudent)).Code)
    assert.Equal(t, http.StatusInternalServerError, serve(e, http.MethodGet, "/me", token(t, 3, model.RoleStudent)).Code)
    assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodGet, "/me", token(t, 4, model.RoleStudent)).Code)
}

func rateConfig() config.RateLimitConfig {
    return config.RateLimitConfig{
        Enabled:        true,
        Capacity:       2,
        RefillTokens:   1,
        RefillInterval: time.Minute,
        TTL:            10 * time.Minute,
        Prefix:         "rl",
        KeyStrategy:    "ip",
        LocalFallback:  true,
    }
}

func limited(cfg config.RateLimitConfig, rdb *redis.Client) *echo.Echo {
    e := echo.New()
    e.GET("/ping", func(c echo.Context) error { return c.String(http.StatusOK, "pong") }, RateLimit(cfg, rdb))
    return e
}

func TestRateLimitRedis(t *testing.T) {
    mr := miniredis.RunT(t)
    rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
    e := limited(rateConfig(), rdb)

    first := serve(e, http.MethodGet, "/ping", "")
    assert.Equal(t, http.StatusOK, first.Code)
    assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
    assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))
    assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/ping", "").Code)

    blocked := serve(e, http.MethodGet, "/ping", "")
    assert.Equal(t, http.StatusTooManyRequests, blocked.Code)
    assert.NotEmpty(t, blocked.Header().Get("Retry-After"))
    assert.True(t, mr.Exists("rl:ip:192.0.2.1"))
}

func TestRateLimitLocalFallback(t *testing.T) {
    e := limited(rateConfig(), nil)
    assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/ping", "").Code)
    assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/ping", "").Code)
    assert.Equal(t, http.StatusTooManyRequests, serve(e, http.MethodGet, "/ping", "").Code)

    cfg := rateConfig()
    cfg.LocalFallback = false
    open := limited(cfg, nil)
    for i := 0; i < 5; i++ {
        assert.Equal(t, http.StatusOK, serve(open, http.MethodGet, "/ping", "").Code)
    }
}

func TestLocalLimiterEvictsIdleKeys(t *testing.T) {
    l := NewLocalLimiter(rateConfig())
    now := time.Now()
    assert.True(t, l.take("a", now).allowed)
    l.take("b", now.Add(time.Hour))
    _, ok := l.limiters["a"]
    assert.False(t, ok)
}

func TestResponseCache(t *testing.T) {
    mr := miniredis.RunT(t)
    rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
    rc := NewResponseCache(config.CacheConfig{
        Enabled:     true,
        Methods:     map[string]bool{http.MethodGet: true},
        TTL:         time.Minute,
        KeyStrategy: "route_query",
        Prefix:      "studio",
    }, rdb)

    calls := 0
    e := echo.New()
    e.GET("/events/:id", func(c echo.Context) error {
        calls++
        return c.JSON(http.StatusOK, echo.Map{"id": c.Param("id"), "n": calls})
    }, rc.Middleware())

    first := serve(e, http.MethodGet, "/events/1", "")
    assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
    second := serve(e, http.MethodGet, "/events/1", "")
    assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
    assert.Equal(t, first.Body.String(), second.Body.String())
    assert.Equal(t, 1, calls)

    assert.Equal(t, "MISS", serve(e, http.MethodGet, "/events/2", "").Header().Get("X-Cache"), "path params are part of the key")

    rc.Purge(context.Background())
    assert.Equal(t, "MISS", serve(e, http.MethodGet, "/events/1", "").Header().Get("X-Cache"))
    assert.Equal(t, 3, calls)
}

func TestResponseCacheSkipsErrors(t *testing.T) {
    mr := miniredis.RunT(t)
    rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
    rc := NewResponseCache(config.CacheConfig{Enabled: true, Methods: map[string]bool{http.MethodGet: true}, Prefix: "studio"}, rdb)

    e := echo.New()
    e.GET("/missing", func(c echo.Context) error {
        return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
    }, rc.Middleware())

    serve(e, http.MethodGet, "/missing", "")
    assert.Equal(t, "MISS", serve(e, http.MethodGet, "/missing", "").Header().Get("X-Cache"))
    assert.Empty(t, mr.Keys())
}
