package echoapi

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/easyspeak/console/core/library"
)

type libraryApi struct {
	deps ServerDeps
}

func registerLibraryAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := libraryApi{deps: deps}

	lg := g.Group("/library", jwt)
	lg.GET("", api.query)
	lg.POST("", api.create, adminMiddleware())
	lg.POST("/import", api.importPage, adminMiddleware())
	lg.PUT("/:id", api.update, adminMiddleware())
	lg.DELETE("/:id", api.destroy, adminMiddleware())
}

func (api *libraryApi) query(ctx echo.Context) error {
	p, err := getContextProfile(ctx, api.deps.StaffSvc)
	if err != nil {
		return err
	}
	pages, err := api.deps.LibrarySvc.QueryByOrg(ctx.Request().Context(), p.OrganizationID)
	if err != nil {
		return errors.Wrap(err, "querying library")
	}
	return ctx.JSON(http.StatusOK, pages)
}

func (api *libraryApi) create(ctx echo.Context) error {
	p, err := getContextProfile(ctx, api.deps.StaffSvc)
	if err != nil {
		return err
	}

	var data library.NewPage
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPage")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	page, err := api.deps.LibrarySvc.Create(ctx.Request().Context(), &p, data)
	if err != nil {
		return errors.Wrap(err, "creating library page")
	}
	return ctx.JSON(http.StatusCreated, page)
}

// importPage ingests a raw page export; both the bare page object and the
// wrapped export format are accepted.
func (api *libraryApi) importPage(ctx echo.Context) error {
	p, err := getContextProfile(ctx, api.deps.StaffSvc)
	if err != nil {
		return err
	}

	payload, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return errors.Wrap(err, "reading import payload")
	}

	page, err := api.deps.LibrarySvc.Import(ctx.Request().Context(), &p, payload)
	if err != nil {
		return errors.Wrap(err, "importing library page")
	}
	return ctx.JSON(http.StatusCreated, page)
}

func (api *libraryApi) update(ctx echo.Context) error {
	p, err := getContextProfile(ctx, api.deps.StaffSvc)
	if err != nil {
		return err
	}

	var data library.NewPage
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPage")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	page, err := api.deps.LibrarySvc.Update(ctx.Request().Context(), &p, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating library page")
	}
	return ctx.JSON(http.StatusOK, page)
}

func (api *libraryApi) destroy(ctx echo.Context) error {
	p, err := getContextProfile(ctx, api.deps.StaffSvc)
	if err != nil {
		return err
	}
	if err := api.deps.LibrarySvc.Delete(ctx.Request().Context(), &p, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting library page")
	}
	return ctx.NoContent(http.StatusNoContent)
}
