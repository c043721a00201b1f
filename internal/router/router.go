package router // package router defines how HTTP routes are registered for the API

import (
	"database/sql"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/studio-booking/internal/handler"
	"github.com/iliyamo/studio-booking/internal/middleware"
	"github.com/iliyamo/studio-booking/internal/model"
)

// Handlers is everything the API serves.
type Handlers struct {
	Auth        *handler.AuthHandler
	Catalog     *handler.CatalogHandler
	Bookings    *handler.BookingHandler
	Cart        *handler.CartHandler
	Credit      *handler.CreditHandler
	Disclaimers *handler.DisclaimerHandler
	Staff       *handler.StaffHandler
}

// Deps are the shared pieces the middleware chain needs.
type Deps struct {
	JWTSecret string
	DB        *sql.DB
	Redis     *redis.Client
	Identity  middleware.IdentityLoader
	Cache     *middleware.ResponseCache
	RateLimit echo.MiddlewareFunc
}

// RegisterRoutes registers routes that do not require authentication.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(d.DB, d.Redis))
}

// RegisterAuth registers the token endpoints under /v1/auth and the
// caller's profile under /v1/me.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, d Deps) {
	g := e.Group("/v1/auth")
	if d.RateLimit != nil {
		g.Use(d.RateLimit)
	}
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// rotates the refresh token
	g.POST("/refresh", a.Refresh)
	g.POST("/refresh-access", a.RefreshAccess)
	// logout accepts a refresh_token body, a bearer token, or both
	g.POST("/logout", a.Logout)
	e.POST("/v1/logout", a.Logout)

	me := e.Group("/v1", middleware.JWTAuth(d.JWTSecret), middleware.LoadIdentity(d.Identity))
	me.GET("/me", a.Me)
}

// RegisterPublic registers the cacheable catalog reads.
func RegisterPublic(e *echo.Echo, h Handlers, d Deps) {
	g := e.Group("/v1", d.Cache.Middleware())
	g.GET("/events/:id", h.Catalog.GetEvent)
	g.GET("/courses/:id", h.Catalog.GetCourse)
	e.GET("/v1/disclaimer", h.Disclaimers.Current)
}

// RegisterStudent registers the endpoints any signed-in user may call.
// Managed accounts are addressed with for_user_id.
func RegisterStudent(e *echo.Echo, h Handlers, d Deps) {
	g := e.Group("/v1",
		middleware.JWTAuth(d.JWTSecret),
		middleware.RequireRole(model.RoleStudent, model.RoleStaff),
		middleware.LoadIdentity(d.Identity),
	)
	if d.RateLimit != nil {
		g.Use(d.RateLimit)
	}

	g.POST("/events/:id/book", h.Bookings.Book)
	g.POST("/events/:id/toggle", h.Bookings.Toggle)
	g.GET("/events/:id/eligibility", h.Bookings.Eligibility)
	g.POST("/events/:id/waiting-list", h.Bookings.JoinWaitingList)
	g.DELETE("/events/:id/waiting-list", h.Bookings.LeaveWaitingList)
	g.POST("/bookings/:id/cancel", h.Bookings.Cancel)
	g.POST("/courses/:id/book", h.Bookings.BookCourse)

	g.GET("/credit", h.Credit.List)
	g.GET("/event-types/:id/credit", h.Credit.HasCredit)

	g.GET("/cart", h.Cart.View)
	g.POST("/cart/blocks", h.Cart.AddBlock)
	g.DELETE("/cart/blocks/:id", h.Cart.RemoveBlock)
	g.POST("/cart/subscriptions", h.Cart.AddSubscription)
	g.DELETE("/cart/subscriptions/:id", h.Cart.RemoveSubscription)
	g.POST("/cart/vouchers", h.Cart.ApplyVoucher)
	g.POST("/cart/checkout", h.Cart.Checkout)
	g.GET("/subscription-configs/:id/start-options", h.Cart.StartOptions)
	g.POST("/gift-vouchers", h.Cart.PurchaseGift)

	g.GET("/disclaimer/status", h.Disclaimers.Status)
	g.POST("/disclaimer/sign", h.Disclaimers.Sign)
}

// RegisterStaff registers the studio management endpoints.
func RegisterStaff(e *echo.Echo, h Handlers, d Deps) {
	g := e.Group("/v1/staff",
		middleware.JWTAuth(d.JWTSecret),
		middleware.RequireRole(model.RoleStaff),
		middleware.LoadIdentity(d.Identity),
	)
	g.POST("/event-types", h.Staff.CreateEventType)
	g.POST("/events", h.Staff.CreateEvent)
	g.POST("/courses", h.Staff.CreateCourse)
	g.POST("/courses/:id/events/:event_id", h.Staff.AttachEvent)
	g.POST("/courses/:id/cancel", h.Staff.CancelCourse)
	g.POST("/block-configs", h.Staff.CreateBlockConfig)
	g.POST("/bookings/:id/register", h.Staff.Register)
	g.POST("/invoices/:ref/paid", h.Staff.MarkInvoicePaid)
	g.POST("/vouchers", h.Staff.CreateVoucher)
	g.POST("/disclaimers", h.Staff.PublishDisclaimer)
}

// Register wires every route group.
func Register(e *echo.Echo, h Handlers, d Deps) {
	RegisterRoutes(e, d)
	RegisterAuth(e, h.Auth, d)
	RegisterPublic(e, h, d)
	RegisterStudent(e, h, d)
	RegisterStaff(e, h, d)
}
