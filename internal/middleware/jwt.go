package middleware

import (
    "net/http"
    "strconv"
    "strings"

    "github.com/golang-jwt/jwt/v5"
    "github.com/labstack/echo/v4"
)

// Context keys set by JWTAuth.
const (
    CtxUserID = "user_id" // uint64
    CtxRole   = "role"    // string
)

// ParseAccessToken validates an HS256 access token and returns its subject
// and role.
func ParseAccessToken(secret, raw string) (uint64, string, error) {
    tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
        if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
            return nil, echo.ErrUnauthorized
        }
        return []byte(secret), nil
    }, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
    if err != nil || !tok.Valid {
        return 0, "", echo.ErrUnauthorized
    }
    claims, ok := tok.Claims.(jwt.MapClaims)
    if !ok {
        return 0, "", echo.ErrUnauthorized
    }
    var uid uint64
    switch sub := claims["sub"].(type) {
    case float64:
        uid = uint64(sub)
    case string:
        uid, _ = strconv.ParseUint(sub, 10, 64)
    }
    if uid == 0 {
        return 0, "", echo.ErrUnauthorized
    }
    role, _ := claims["role"].(string)
    return uid, role, nil
}

// JWTAuth validates the Bearer access token and stores the caller's id and
// role under CtxUserID and CtxRole.
func JWTAuth(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            auth := c.Request().Header.Get("Authorization")
            if !strings.HasPrefix(auth, "Bearer ") {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
            }
            uid, role, err := ParseAccessToken(secret, strings.TrimPrefix(auth, "Bearer "))
            if err != nil {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
            }
            c.Set(CtxUserID, uid)
            c.Set(CtxRole, role)
            return next(c)
        }
    }
}

// UserID returns the authenticated caller, if any.
func UserID(c echo.Context) (uint64, bool) {
    uid, ok := c.Get(CtxUserID).(uint64)
    return uid, ok && uid != 0
}
