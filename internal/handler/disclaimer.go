package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/studio-booking/internal/disclaimer"
	"github.com/iliyamo/studio-booking/internal/middleware"
)

// DisclaimerHandler serves disclaimer content and signatures.
type DisclaimerHandler struct {
	Disclaimers *disclaimer.Service
}

func NewDisclaimerHandler(d *disclaimer.Service) *DisclaimerHandler {
	return &DisclaimerHandler{Disclaimers: d}
}

type disclaimerView struct {
	Version   decimal.Decimal `json:"version"`
	Content   string          `json:"content"`
	IssueDate time.Time       `json:"issue_date"`
}

func toDisclaimerView(p disclaimer.Published) disclaimerView {
	return disclaimerView{Version: p.Version(), Content: p.Content(), IssueDate: p.IssueDate()}
}

// Current handles GET /v1/disclaimer.
func (h *DisclaimerHandler) Current(c echo.Context) error {
	p, err := h.Disclaimers.Current(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}
	if p == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "no disclaimer published"})
	}
	return c.JSON(http.StatusOK, toDisclaimerView(*p))
}

// Status handles GET /v1/disclaimer/status.
func (h *DisclaimerHandler) Status(c echo.Context) error {
	userID, ok := queryOwner(c)
	if !ok {
		return badRequest(c, "invalid query")
	}
	if !middleware.Identity(c).CanActFor(userID) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	active, err := h.Disclaimers.HasActive(c.Request().Context(), userID, time.Now().UTC())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user_id": userID, "active": active})
}

// Sign handles POST /v1/disclaimer/sign.  Adults may sign for the accounts
// they manage.
func (h *DisclaimerHandler) Sign(c echo.Context) error {
	var req struct {
		ForUserID uint64 `json:"for_user_id"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	uc := middleware.Identity(c)
	userID := owner(uc, req.ForUserID)
	if !uc.CanActFor(userID) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	d, err := h.Disclaimers.Sign(c.Request().Context(), userID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"user_id": d.UserID,
		"version": d.Version,
		"date":    d.Date,
	})
}
