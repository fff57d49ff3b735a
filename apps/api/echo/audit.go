package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type auditApi struct {
	deps ServerDeps
}

func registerAuditAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := auditApi{deps: deps}

	ag := g.Group("/audit", jwt, adminMiddleware())
	ag.GET("", api.query)
}

func (api *auditApi) query(ctx echo.Context) error {
	p, err := getContextProfile(ctx, api.deps.StaffSvc)
	if err != nil {
		return err
	}

	orgID := p.OrganizationID
	if p.IsSuperAdmin() {
		if qOrg := ctx.QueryParam("org"); qOrg != "" {
			orgID = qOrg
		}
	}

	entries, err := api.deps.AuditSvc.QueryByOrg(ctx.Request().Context(), orgID)
	if err != nil {
		return errors.Wrap(err, "querying audit ledger")
	}
	return ctx.JSON(http.StatusOK, entries)
}
