package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/easyspeak/console/core/audit"
	"github.com/easyspeak/console/core/school"
)

type schoolApi struct {
	deps ServerDeps
}

func registerSchoolAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := schoolApi{deps: deps}

	sg := g.Group("/schools", jwt)
	sg.GET("", api.query)
	sg.POST("", api.create, adminMiddleware())
}

func (api *schoolApi) query(ctx echo.Context) error {
	p, err := getContextProfile(ctx, api.deps.StaffSvc)
	if err != nil {
		return err
	}
	schools, err := api.deps.SchoolSvc.QueryByOrg(ctx.Request().Context(), p.OrganizationID)
	if err != nil {
		return errors.Wrap(err, "querying schools")
	}
	return ctx.JSON(http.StatusOK, schools)
}

func (api *schoolApi) create(ctx echo.Context) error {
	p, err := getContextProfile(ctx, api.deps.StaffSvc)
	if err != nil {
		return err
	}

	var data school.NewSchool
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSchool")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	s, err := api.deps.SchoolSvc.Create(ctx.Request().Context(), p.OrganizationID,
		audit.Actor{Email: p.Email, Role: p.Role}, data)
	if err != nil {
		return errors.Wrap(err, "creating school")
	}
	return ctx.JSON(http.StatusCreated, s)
}
