package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/easyspeak/console/core/invite"
	"github.com/easyspeak/console/core/staff"
)

type inviteApi struct {
	deps ServerDeps
}

func registerInviteAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := inviteApi{deps: deps}

	ig := g.Group("/invites", jwt, adminMiddleware())
	ig.POST("", api.issue)
	ig.GET("", api.queryPending)
	ig.DELETE("/:id", api.revoke)
}

func (api *inviteApi) issue(ctx echo.Context) error {
	p, err := getContextProfile(ctx, api.deps.StaffSvc)
	if err != nil {
		return err
	}

	var data invite.NewInvite
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewInvite")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	inv, err := api.deps.InviteSvc.Issue(ctx.Request().Context(), inviterOf(p), data)
	if err != nil {
		return errors.Wrap(err, "issuing invite")
	}
	return ctx.JSON(http.StatusCreated, inv)
}

func (api *inviteApi) queryPending(ctx echo.Context) error {
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

	invites, err := api.deps.InviteSvc.QueryPendingByOrg(ctx.Request().Context(), orgID)
	if err != nil {
		return errors.Wrap(err, "querying pending invites")
	}
	return ctx.JSON(http.StatusOK, invites)
}

func (api *inviteApi) revoke(ctx echo.Context) error {
	p, err := getContextProfile(ctx, api.deps.StaffSvc)
	if err != nil {
		return err
	}
	if err := api.deps.InviteSvc.Revoke(ctx.Request().Context(), inviterOf(p), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "revoking invite")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func inviterOf(p staff.Profile) invite.Inviter {
	return invite.Inviter{Email: p.Email, Role: p.Role, OrganizationID: p.OrganizationID}
}
