package revenue

import (
	"net/http"
	"time"

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
	g := api.Group("/revenue", auth.RequireRole(auth.RoleBilling, auth.RoleCollections))
	g.GET("/snapshot", h.Snapshot)
	g.GET("/write-offs", h.WriteOffsByPeriod)
}

func (h *Handler) Snapshot(c echo.Context) error {
	orgID := auth.OrgIDFromContext(c.Request().Context())
	snap, err := h.svc.Snapshot(c.Request().Context(), orgID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, snap)
}

func (h *Handler) WriteOffsByPeriod(c echo.Context) error {
	orgID := auth.OrgIDFromContext(c.Request().Context())

	var from, to time.Time
	if v := c.QueryParam("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "from must be RFC 3339")
		}
		from = t
	}
	if v := c.QueryParam("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "to must be RFC 3339")
		}
		to = t
	}

	items, err := h.svc.WriteOffsByPeriod(c.Request().Context(), orgID, from, to)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}
