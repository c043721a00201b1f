package middleware

import (
    "context"
    "errors"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/studio-booking/internal/identity"
    "github.com/iliyamo/studio-booking/internal/repository"
)

// CtxIdentity holds the *identity.UserContext built by LoadIdentity.
const CtxIdentity = "identity"

// IdentityLoader builds a UserContext for an authenticated user.
type IdentityLoader interface {
    Load(ctx context.Context, userID uint64) (*identity.UserContext, error)
}

// LoadIdentity resolves the JWT subject into a UserContext (role, managed
// accounts, disclaimer capability).  Deleted users get 401, deactivated
// users 403.  It must run after JWTAuth.
func LoadIdentity(loader IdentityLoader) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            uid, ok := UserID(c)
            if !ok {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
            }
            uc, err := loader.Load(c.Request().Context(), uid)
            switch {
            case errors.Is(err, repository.ErrNotFound):
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unknown user"})
            case errors.Is(err, repository.ErrForbidden):
                return c.JSON(http.StatusForbidden, echo.Map{"error": "account inactive"})
            case err != nil:
                c.Logger().Errorf("identity: load user %d: %v", uid, err)
                return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
            }
            c.Set(CtxIdentity, uc)
            return next(c)
        }
    }
}

// Identity returns the caller's UserContext, or nil outside LoadIdentity.
func Identity(c echo.Context) *identity.UserContext {
    uc, _ := c.Get(CtxIdentity).(*identity.UserContext)
    return uc
}
