package rates

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/emsops/emsops/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/rates", auth.RequireRole(auth.RoleBilling))
	g.GET("", h.GetRates)
	g.PUT("", h.SaveRates)
}

// GetRates returns the caller organization's rate configuration, or the
// stock defaults when none has been saved.
func (h *Handler) GetRates(c echo.Context) error {
	orgID := auth.OrgIDFromContext(c.Request().Context())
	rc, err := h.svc.GetForOrg(c.Request().Context(), orgID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, rc)
}

func (h *Handler) SaveRates(c echo.Context) error {
	var rc RateConfig
	if err := c.Bind(&rc); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rc.OrgID = auth.OrgIDFromContext(c.Request().Context())
	if err := h.svc.Save(c.Request().Context(), &rc); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, rc)
}
