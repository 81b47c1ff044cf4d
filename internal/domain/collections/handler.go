package collections

import (
	"errors"
	"net/http"
	"time"

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
	accounts := api.Group("/collections/accounts", auth.RequireRole(auth.RoleCollections))
	accounts.POST("", h.OpenAccount)
	accounts.GET("", h.ListAccounts)
	accounts.GET("/:id", h.GetAccount)
	accounts.POST("/:id/payments", h.RecordPayment)
	accounts.POST("/:id/pause", h.SetPause)
	accounts.DELETE("/:id/pause", h.ClearPause)
	accounts.POST("/:id/advance", h.AdvanceAccount)

	// Founder-gated operations.
	founder := api.Group("/collections", auth.RequireRole(auth.RoleFounder))
	founder.POST("/accounts/:id/write-off", h.ApproveWriteOff)
	founder.GET("/write-offs", h.ListWriteOffs)
	founder.POST("/policies", h.CreatePolicyVersion)
	founder.POST("/policies/:id/lock", h.LockPolicy)

	policies := api.Group("/collections/policies", auth.RequireRole(auth.RoleCollections))
	policies.GET("", h.ListPolicies)
	policies.GET("/active", h.GetActivePolicy)
}

func (h *Handler) OpenAccount(c echo.Context) error {
	var in OpenAccountInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&in); err != nil {
		return err
	}
	orgID := auth.OrgIDFromContext(c.Request().Context())
	a, err := h.svc.OpenAccount(c.Request().Context(), orgID, in)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) GetAccount(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := h.svc.GetAccount(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "account not found")
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) ListAccounts(c echo.Context) error {
	pg := pagination.FromContext(c)
	orgID := auth.OrgIDFromContext(c.Request().Context())
	state := State(c.QueryParam("state"))
	items, total, err := h.svc.ListAccounts(c.Request().Context(), orgID, state, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

type paymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (h *Handler) RecordPayment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req paymentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.RecordPayment(c.Request().Context(), id, req.Amount, time.Now().UTC())
	if err != nil {
		if errors.Is(err, ErrAccountTerminal) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, a)
}

type pauseRequest struct {
	HoldUntil *time.Time `json:"hold_until,omitempty"`
}

func (h *Handler) SetPause(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req pauseRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.SetPause(c.Request().Context(), id, req.HoldUntil)
	if err != nil {
		if errors.Is(err, ErrAccountTerminal) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) ClearPause(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := h.svc.ClearPause(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, a)
}

// AdvanceAccount triggers one escalation evaluation outside the sweep
// cadence, for manual review workflows.
func (h *Handler) AdvanceAccount(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, transitioned, err := h.svc.Advance(c.Request().Context(), id, time.Now().UTC())
	if err != nil {
		switch {
		case errors.Is(err, ErrDecisionPending):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		case errors.Is(err, ErrAccountTerminal):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"account":      a,
		"transitioned": transitioned,
	})
}

type writeOffRequest struct {
	Reason string `json:"reason" validate:"required"`
}

func (h *Handler) ApproveWriteOff(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req writeOffRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	approver := auth.UserIDFromContext(c.Request().Context())
	rec, err := h.svc.ApproveWriteOff(c.Request().Context(), id, approver, req.Reason, time.Now().UTC())
	if err != nil {
		switch {
		case errors.Is(err, ErrApproverRequired):
			return echo.NewHTTPError(http.StatusForbidden, err.Error())
		case errors.Is(err, ErrAccountTerminal), errors.Is(err, ErrInvalidTransition):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		default:
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	return c.JSON(http.StatusCreated, rec)
}

func (h *Handler) ListWriteOffs(c echo.Context) error {
	pg := pagination.FromContext(c)
	orgID := auth.OrgIDFromContext(c.Request().Context())
	items, total, err := h.svc.ListWriteOffs(c.Request().Context(), orgID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) CreatePolicyVersion(c echo.Context) error {
	orgID := auth.OrgIDFromContext(c.Request().Context())
	approver := auth.UserIDFromContext(c.Request().Context())
	p, err := h.svc.CreatePolicyVersion(c.Request().Context(), orgID, approver, time.Now().UTC())
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) LockPolicy(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.LockPolicy(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrPolicyLocked) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) GetActivePolicy(c echo.Context) error {
	orgID := auth.OrgIDFromContext(c.Request().Context())
	p, err := h.svc.GetActivePolicy(c.Request().Context(), orgID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "no collections policy configured")
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListPolicies(c echo.Context) error {
	orgID := auth.OrgIDFromContext(c.Request().Context())
	items, err := h.svc.ListPolicies(c.Request().Context(), orgID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}
