package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Roles used by the billing service. "admin" implies every other role;
// "founder" is the ownership-level role required for write-off approvals and
// collections policy changes.
const (
	RoleAdmin       = "admin"
	RoleBilling     = "billing"
	RoleCollections = "collections"
	RoleFounder     = "founder"
)

// RequireRole returns middleware that checks if the user has at least one of the specified roles.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userRoles := RolesFromContext(c.Request().Context())
			for _, required := range roles {
				for _, has := range userRoles {
					if has == required || has == RoleAdmin {
						return next(c)
					}
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}

// HasRole reports whether the role list contains the given role or admin.
func HasRole(userRoles []string, role string) bool {
	for _, r := range userRoles {
		if r == role || r == RoleAdmin {
			return true
		}
	}
	return false
}
