package paymentplan

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/emsops/emsops/internal/platform/auth"
	"github.com/emsops/emsops/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/payment-plans", auth.RequireRole(auth.RoleCollections))
	g.POST("/options", h.Options)
	g.POST("", h.CreatePlan)
	g.GET("", h.ListPlans)
	g.GET("/:id", h.GetPlan)
	g.POST("/:id/accept", h.AcceptPlan)
	g.POST("/:id/installments", h.RecordInstallment)
	g.POST("/:id/default", h.MarkDefaulted)
}

func (h *Handler) Options(c echo.Context) error {
	var req TierRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	orgID := auth.OrgIDFromContext(c.Request().Context())
	options, err := h.svc.Options(c.Request().Context(), orgID, req)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, options)
}

type createPlanRequest struct {
	AccountID uuid.UUID `json:"account_id" validate:"required"`
	Tier      Tier      `json:"tier" validate:"required"`
	TierRequest
}

func (h *Handler) CreatePlan(c echo.Context) error {
	var req createPlanRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	orgID := auth.OrgIDFromContext(c.Request().Context())
	p, err := h.svc.CreatePlan(c.Request().Context(), orgID, req.AccountID, req.Tier, req.TierRequest)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, p)
}

type acceptRequest struct {
	AcceptedBy string `json:"accepted_by" validate:"required"`
	Consent    bool   `json:"consent"`
}

func (h *Handler) AcceptPlan(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req acceptRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	p, err := h.svc.Accept(c.Request().Context(), id, req.AcceptedBy, req.Consent)
	if err != nil {
		switch {
		case errors.Is(err, ErrConsentRequired), errors.Is(err, ErrNotPending):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		default:
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	return c.JSON(http.StatusOK, p)
}

type installmentRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (h *Handler) RecordInstallment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req installmentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.RecordInstallment(c.Request().Context(), id, req.Amount)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) MarkDefaulted(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.MarkDefaulted(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) GetPlan(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "payment plan not found")
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListPlans(c echo.Context) error {
	pg := pagination.FromContext(c)
	orgID := auth.OrgIDFromContext(c.Request().Context())
	items, total, err := h.svc.List(c.Request().Context(), orgID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
