package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/easyspeak/console/core/access"
)

// roleMiddleware admits only the named roles.
func roleMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			for _, role := range roles {
				if claims.Role == role {
					return next(ctx)
				}
			}
			return errHttpForbidden
		}
	}
}

// adminMiddleware admits district and super admins.
func adminMiddleware() echo.MiddlewareFunc {
	return roleMiddleware(access.RoleDistrictAdmin, access.RoleSuperAdmin)
}

func superAdminMiddleware() echo.MiddlewareFunc {
	return roleMiddleware(access.RoleSuperAdmin)
}
