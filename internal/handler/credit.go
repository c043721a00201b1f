package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/studio-booking/internal/cache"
	"github.com/iliyamo/studio-booking/internal/credit"
	"github.com/iliyamo/studio-booking/internal/middleware"
	"github.com/iliyamo/studio-booking/internal/repository"
)

// CreditHandler lists a user's blocks and subscriptions and answers the
// cached "has credit for this event type" question used by listings.
type CreditHandler struct {
	Store repository.Store
	Inv   *credit.Inventory
	Cache *cache.CreditCache
}

func NewCreditHandler(store repository.Store, inv *credit.Inventory, cc *cache.CreditCache) *CreditHandler {
	return &CreditHandler{Store: store, Inv: inv, Cache: cc}
}

// List handles GET /v1/credit.
func (h *CreditHandler) List(c echo.Context) error {
	userID, ok := queryOwner(c)
	if !ok {
		return badRequest(c, "invalid query")
	}
	if !middleware.Identity(c).CanActFor(userID) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	ctx := c.Request().Context()
	blocks := []blockView{}
	subs := []subscriptionView{}
	err := h.Store.WithinTx(ctx, func(tx repository.Tx) error {
		bs, err := tx.ListUserBlocks(ctx, userID)
		if err != nil {
			return err
		}
		for _, b := range bs {
			blocks = append(blocks, toBlockView(b))
		}
		ss, err := tx.ListUserSubscriptions(ctx, userID)
		if err != nil {
			return err
		}
		for _, s := range ss {
			subs = append(subs, toSubscriptionView(s))
		}
		return nil
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"blocks": blocks, "subscriptions": subs})
}

// HasCredit handles GET /v1/event-types/:id/credit.
func (h *CreditHandler) HasCredit(c echo.Context) error {
	typeID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid event type id")
	}
	userID, ok := queryOwner(c)
	if !ok {
		return badRequest(c, "invalid query")
	}
	if !middleware.Identity(c).CanActFor(userID) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	load := func(ctx context.Context) (bool, error) {
		var has bool
		err := h.Store.WithinTx(ctx, func(tx repository.Tx) error {
			var err error
			has, err = h.Inv.HasActiveCredit(ctx, tx, userID, typeID)
			return err
		})
		return has, err
	}
	has, err := h.Cache.HasActiveCredit(c.Request().Context(), userID, typeID, load)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"event_type_id": typeID, "has_active_credit": has})
}
