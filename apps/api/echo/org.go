package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/easyspeak/console/core"
	"github.com/easyspeak/console/core/org"
	"github.com/easyspeak/console/core/staff"
)

type orgApi struct {
	deps ServerDeps
}

func registerOrgAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := orgApi{deps: deps}

	og := g.Group("/orgs", jwt)
	og.POST("", api.create, superAdminMiddleware())
	og.GET("", api.queryAll, superAdminMiddleware())
	og.GET("/:id", api.retrieve)
	og.PUT("/:id/quota", api.setQuota, superAdminMiddleware())
	og.POST("/:id/wipe", api.requestWipe, adminMiddleware())
	og.POST("/:id/wipe/confirm", api.confirmWipe, adminMiddleware())
}

func (api *orgApi) create(ctx echo.Context) error {
	p, err := getContextProfile(ctx, api.deps.StaffSvc)
	if err != nil {
		return err
	}

	var data org.NewOrganization
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewOrganization")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	o, err := api.deps.OrgSvc.Create(ctx.Request().Context(), actorOf(p), data)
	if err != nil {
		return errors.Wrap(err, "creating organization")
	}
	return ctx.JSON(http.StatusCreated, o)
}

func (api *orgApi) queryAll(ctx echo.Context) error {
	p, err := getContextProfile(ctx, api.deps.StaffSvc)
	if err != nil {
		return err
	}
	orgs, err := api.deps.OrgSvc.QueryAll(ctx.Request().Context(), actorOf(p))
	if err != nil {
		return errors.Wrap(err, "querying organizations")
	}
	return ctx.JSON(http.StatusOK, orgs)
}

func (api *orgApi) retrieve(ctx echo.Context) error {
	p, err := getContextProfile(ctx, api.deps.StaffSvc)
	if err != nil {
		return err
	}
	orgID := ctx.Param("id")
	if !p.IsSuperAdmin() && p.OrganizationID != orgID {
		return errHttpNotFound
	}

	o, err := api.deps.OrgSvc.GetByID(ctx.Request().Context(), orgID)
	if err != nil {
		return errors.Wrap(err, "finding organization")
	}
	return ctx.JSON(http.StatusOK, o)
}

func (api *orgApi) setQuota(ctx echo.Context) error {
	p, err := getContextProfile(ctx, api.deps.StaffSvc)
	if err != nil {
		return err
	}

	var data org.UpdateQuota
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateQuota")
	}
	if data.LicenseQuota < 0 {
		return core.NewValidationError(nil, core.FieldError{Field: "license_quota", Error: "must be 0 or greater"})
	}

	o, err := api.deps.OrgSvc.SetQuota(ctx.Request().Context(), actorOf(p), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "setting quota")
	}
	return ctx.JSON(http.StatusOK, o)
}

func (api *orgApi) requestWipe(ctx echo.Context) error {
	p, err := getContextProfile(ctx, api.deps.StaffSvc)
	if err != nil {
		return err
	}
	ch, err := api.deps.OrgSvc.RequestWipe(ctx.Request().Context(), actorOf(p), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "requesting wipe")
	}
	return ctx.JSON(http.StatusOK, ch)
}

type ConfirmWipeRequest struct {
	Token       string `json:"token" validate:"required"`
	Name        string `json:"name" validate:"required"`
	ConfirmCode string `json:"confirm_code"`
}

func (api *orgApi) confirmWipe(ctx echo.Context) error {
	p, err := getContextProfile(ctx, api.deps.StaffSvc)
	if err != nil {
		return err
	}

	var data ConfirmWipeRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ConfirmWipeRequest")
	}
	if err := api.deps.Validate.Struct(&data); err != nil {
		return err
	}

	report, err := api.deps.OrgSvc.ConfirmWipe(ctx.Request().Context(), actorOf(p), data.Token, data.Name, data.ConfirmCode)
	if err != nil {
		return errors.Wrap(err, "confirming wipe")
	}
	return ctx.JSON(http.StatusOK, report)
}

func actorOf(p staff.Profile) org.Actor {
	return org.Actor{
		UID:            p.UID,
		Email:          p.Email,
		Role:           p.Role,
		OrganizationID: p.OrganizationID,
		IsSuperAdmin:   p.IsSuperAdmin(),
	}
}
