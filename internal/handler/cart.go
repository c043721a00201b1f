package handler

import (
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/studio-booking/internal/booking"
	"github.com/iliyamo/studio-booking/internal/checkout"
	"github.com/iliyamo/studio-booking/internal/identity"
	"github.com/iliyamo/studio-booking/internal/middleware"
	"github.com/iliyamo/studio-booking/internal/sweeper"
	"github.com/iliyamo/studio-booking/internal/voucher"
)

// CartHandler covers the shopping cart, vouchers and checkout.
type CartHandler struct {
	Bookings *booking.Service
	Carts    *checkout.Service
	Vouchers *voucher.Engine
	Sweeper  *sweeper.Sweeper
}

func NewCartHandler(b *booking.Service, co *checkout.Service, v *voucher.Engine, sw *sweeper.Sweeper) *CartHandler {
	return &CartHandler{Bookings: b, Carts: co, Vouchers: v, Sweeper: sw}
}

type cartItemReq struct {
	ForUserID uint64 `json:"for_user_id"`
	ConfigID  uint64 `json:"config_id"`
	StartDate string `json:"start_date"` // RFC 3339, subscriptions only
}

// owner returns the account the request acts for.
func owner(uc *identity.UserContext, forUserID uint64) uint64 {
	if forUserID != 0 || uc == nil {
		return forUserID
	}
	return uc.UserID
}

// queryOwner reads ?for_user_id=, defaulting to the caller.
func queryOwner(c echo.Context) (uint64, bool) {
	var q struct {
		ForUserID uint64 `query:"for_user_id"`
	}
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &q); err != nil {
		return 0, false
	}
	return owner(middleware.Identity(c), q.ForUserID), true
}

// AddBlock handles POST /v1/cart/blocks.
func (h *CartHandler) AddBlock(c echo.Context) error {
	var req cartItemReq
	if err := c.Bind(&req); err != nil || req.ConfigID == 0 {
		return badRequest(c, "config_id required")
	}
	uc := middleware.Identity(c)
	b, err := h.Carts.AddBlock(c.Request().Context(), uc, owner(uc, req.ForUserID), req.ConfigID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, toBlockView(*b))
}

// AddSubscription handles POST /v1/cart/subscriptions.  Without a
// start_date the first offered period is used.
func (h *CartHandler) AddSubscription(c echo.Context) error {
	var req cartItemReq
	if err := c.Bind(&req); err != nil || req.ConfigID == 0 {
		return badRequest(c, "config_id required")
	}
	var start *time.Time
	if req.StartDate != "" {
		t, err := time.Parse(time.RFC3339, req.StartDate)
		if err != nil {
			return badRequest(c, "start_date must be RFC 3339")
		}
		start = &t
	}
	uc := middleware.Identity(c)
	s, err := h.Carts.AddSubscription(c.Request().Context(), uc, owner(uc, req.ForUserID), req.ConfigID, start)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, toSubscriptionView(*s))
}

// RemoveBlock handles DELETE /v1/cart/blocks/:id.  Bookings made with the
// unpaid block are cancelled along with it.
func (h *CartHandler) RemoveBlock(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid block id")
	}
	uc := middleware.Identity(c)
	if uc == nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	if err := h.Bookings.ReleaseUnpaidBlock(c.Request().Context(), uc, id); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// RemoveSubscription handles DELETE /v1/cart/subscriptions/:id.
func (h *CartHandler) RemoveSubscription(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid subscription id")
	}
	uc := middleware.Identity(c)
	if uc == nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	if err := h.Bookings.ReleaseUnpaidSubscription(c.Request().Context(), uc, id); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// StartOptions handles GET /v1/subscription-configs/:id/start-options.  A
// null entry means the period starts on the first booking.
func (h *CartHandler) StartOptions(c echo.Context) error {
	configID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid config id")
	}
	userID, ok := queryOwner(c)
	if !ok {
		return badRequest(c, "invalid query")
	}
	opts, err := h.Carts.StartOptions(c.Request().Context(), middleware.Identity(c), userID, configID)
	if err != nil {
		return fail(c, err)
	}
	if opts == nil {
		opts = []*time.Time{}
	}
	return c.JSON(http.StatusOK, echo.Map{"start_options": opts})
}

// ApplyVoucher handles POST /v1/cart/vouchers.  The voucher is attached to
// as many eligible unpaid blocks as its item count allows.
func (h *CartHandler) ApplyVoucher(c echo.Context) error {
	var req struct {
		Code     string   `json:"code"`
		BlockIDs []uint64 `json:"block_ids"`
	}
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Code) == "" {
		return badRequest(c, "code required")
	}
	applied, err := h.Vouchers.ApplyVoucher(c.Request().Context(), middleware.Identity(c), req.Code, req.BlockIDs)
	if err != nil {
		return fail(c, err)
	}
	if applied == nil {
		applied = []uint64{}
	}
	return c.JSON(http.StatusOK, echo.Map{"applied_block_ids": applied})
}

// View handles GET /v1/cart.  Stale unpaid items of the user are released
// first so the summary never prices credit that is about to vanish.
func (h *CartHandler) View(c echo.Context) error {
	userID, ok := queryOwner(c)
	if !ok {
		return badRequest(c, "invalid query")
	}
	uc := middleware.Identity(c)
	ctx := c.Request().Context()
	if !uc.CanActFor(userID) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	if h.Sweeper != nil {
		if _, err := h.Sweeper.CleanupExpiredCarts(ctx, &userID); err != nil {
			c.Logger().Warnf("cart: cleanup for user %d: %v", userID, err)
		}
	}
	sum, err := h.Carts.Summarize(ctx, uc, userID, c.QueryParam("total_voucher_code"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, sum)
}

// Checkout handles POST /v1/cart/checkout and returns the unpaid invoice
// the payment gateway should collect.
func (h *CartHandler) Checkout(c echo.Context) error {
	var req struct {
		ForUserID        uint64 `json:"for_user_id"`
		TotalVoucherCode string `json:"total_voucher_code"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	uc := middleware.Identity(c)
	inv, sum, err := h.Carts.CreateInvoice(c.Request().Context(), uc, owner(uc, req.ForUserID), req.TotalVoucherCode)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"invoice": toInvoiceView(*inv), "summary": sum})
}

// PurchaseGift handles POST /v1/gift-vouchers.  The voucher stays inactive
// until its invoice is paid.
func (h *CartHandler) PurchaseGift(c echo.Context) error {
	var req struct {
		ConfigID       uint64 `json:"config_id"`
		PurchaserEmail string `json:"purchaser_email"`
	}
	if err := c.Bind(&req); err != nil || req.ConfigID == 0 {
		return badRequest(c, "config_id required")
	}
	if _, err := mail.ParseAddress(req.PurchaserEmail); err != nil {
		return badRequest(c, "valid purchaser_email required")
	}
	var userID uint64
	if uc := middleware.Identity(c); uc != nil {
		userID = uc.UserID
	}
	ctx := c.Request().Context()
	gift, v, err := h.Vouchers.PurchaseGift(ctx, req.ConfigID, strings.ToLower(req.PurchaserEmail))
	if err != nil {
		return fail(c, err)
	}
	inv, err := h.Carts.CreateGiftInvoice(ctx, userID, gift.ID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"gift_voucher_id": gift.ID,
		"voucher":         toVoucherView(*v),
		"invoice":         toInvoiceView(*inv),
	})
}
