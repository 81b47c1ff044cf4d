package charge

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"

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
	g := api.Group("/charges", auth.RequireRole(auth.RoleBilling))
	g.POST("/preview", h.PreviewCharge)
	g.POST("", h.BuildCharge)
	g.GET("", h.ListCharges)
	g.GET("/:id", h.GetCharge)
	g.GET("/incident/:incidentId", h.GetChargeByIncident)
	g.POST("/:id/lock", h.LockCharge)
	g.DELETE("/:id", h.DeleteCharge)
}

func (h *Handler) PreviewCharge(c echo.Context) error {
	var in ChargeInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&in); err != nil {
		return err
	}
	orgID := auth.OrgIDFromContext(c.Request().Context())
	preview, err := h.svc.Preview(c.Request().Context(), orgID, &in)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, preview)
}

func (h *Handler) BuildCharge(c echo.Context) error {
	var in ChargeInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&in); err != nil {
		return err
	}
	orgID := auth.OrgIDFromContext(c.Request().Context())
	rec, err := h.svc.BuildRecord(c.Request().Context(), orgID, &in)
	if err != nil {
		switch {
		case errors.Is(err, ErrDuplicateCharge):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		case errors.Is(err, ErrRecordLocked):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		default:
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	return c.JSON(http.StatusCreated, rec)
}

func (h *Handler) GetCharge(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	rec, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "charge record not found")
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) GetChargeByIncident(c echo.Context) error {
	orgID := auth.OrgIDFromContext(c.Request().Context())
	rec, err := h.svc.GetByIncident(c.Request().Context(), orgID, c.Param("incidentId"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return echo.NewHTTPError(http.StatusNotFound, "charge record not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) ListCharges(c echo.Context) error {
	pg := pagination.FromContext(c)
	orgID := auth.OrgIDFromContext(c.Request().Context())
	items, total, err := h.svc.List(c.Request().Context(), orgID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) LockCharge(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	rec, err := h.svc.Lock(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) DeleteCharge(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	actor := auth.UserIDFromContext(c.Request().Context())
	if err := h.svc.Delete(c.Request().Context(), id, actor); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
