package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/easyspeak/console/core"
	"github.com/easyspeak/console/core/student"
)

type studentApi struct {
	deps ServerDeps
}

func registerStudentAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := studentApi{deps: deps}

	sg := g.Group("/students", jwt)
	sg.GET("", api.query)
	sg.POST("", api.create)
	sg.GET("/:id", api.retrieve)
	sg.PUT("/:id/school", api.moveSchool)
	sg.POST("/:id/license", api.toggleLicense)
	sg.PUT("/:id/pin", api.setPIN)
	sg.POST("/:id/pages", api.pushPage)
	sg.DELETE("/:id/pages/:pageID", api.removePage)
	sg.POST("/:id/link", api.linkDevice)
	sg.POST("/:id/unlink", api.unlinkDevice)
	sg.POST("/:id/deletion", api.requestDeletion, adminMiddleware())
	sg.DELETE("/:id", api.confirmDeletion, adminMiddleware())
}

func (api *studentApi) query(ctx echo.Context) error {
	p, err := getContextProfile(ctx, api.deps.StaffSvc)
	if err != nil {
		return err
	}
	students, err := api.deps.StudentSvc.QueryVisible(ctx.Request().Context(), &p)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *studentApi) create(ctx echo.Context) error {
	p, err := getContextProfile(ctx, api.deps.StaffSvc)
	if err != nil {
		return err
	}

	var data student.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	s, err := api.deps.StudentSvc.Create(ctx.Request().Context(), &p, data)
	if err != nil {
		return errors.Wrap(err, "creating student")
	}
	// HasLicense tells the caller whether the quota had room
	return ctx.JSON(http.StatusCreated, s)
}

func (api *studentApi) retrieve(ctx echo.Context) error {
	p, err := getContextProfile(ctx, api.deps.StaffSvc)
	if err != nil {
		return err
	}
	s, err := api.deps.StudentSvc.GetByID(ctx.Request().Context(), &p, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding student")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *studentApi) moveSchool(ctx echo.Context) error {
	p, err := getContextProfile(ctx, api.deps.StaffSvc)
	if err != nil {
		return err
	}

	var data student.UpdateSchool
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSchool")
	}
	if data.SchoolID == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "school_id", Error: "this field is required"})
	}

	s, err := api.deps.StudentSvc.MoveSchool(ctx.Request().Context(), &p, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "moving student")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *studentApi) toggleLicense(ctx echo.Context) error {
	p, err := getContextProfile(ctx, api.deps.StaffSvc)
	if err != nil {
		return err
	}
	s, err := api.deps.StudentSvc.ToggleLicense(ctx.Request().Context(), &p, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "toggling license")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *studentApi) setPIN(ctx echo.Context) error {
	p, err := getContextProfile(ctx, api.deps.StaffSvc)
	if err != nil {
		return err
	}

	var data student.UpdatePIN
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdatePIN")
	}
	if err := api.deps.Validate.Struct(&data); err != nil {
		return err
	}

	s, err := api.deps.StudentSvc.SetPIN(ctx.Request().Context(), &p, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "setting PIN")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *studentApi) pushPage(ctx echo.Context) error {
	p, err := getContextProfile(ctx, api.deps.StaffSvc)
	if err != nil {
		return err
	}

	var data student.Page
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Page")
	}
	if data.Label == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "label", Error: "this field is required"})
	}

	s, err := api.deps.StudentSvc.PushPage(ctx.Request().Context(), &p, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "pushing page")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *studentApi) removePage(ctx echo.Context) error {
	p, err := getContextProfile(ctx, api.deps.StaffSvc)
	if err != nil {
		return err
	}
	s, err := api.deps.StudentSvc.RemovePage(ctx.Request().Context(), &p, ctx.Param("id"), ctx.Param("pageID"))
	if err != nil {
		return errors.Wrap(err, "removing page")
	}
	return ctx.JSON(http.StatusOK, s)
}

type LinkDeviceRequest struct {
	Code string `json:"code" validate:"required"`
}

func (api *studentApi) linkDevice(ctx echo.Context) error {
	p, err := getContextProfile(ctx, api.deps.StaffSvc)
	if err != nil {
		return err
	}

	var data LinkDeviceRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LinkDeviceRequest")
	}

	s, err := api.deps.DeviceSvc.Link(ctx.Request().Context(), &p, ctx.Param("id"), data.Code)
	if err != nil {
		return errors.Wrap(err, "linking device")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *studentApi) unlinkDevice(ctx echo.Context) error {
	p, err := getContextProfile(ctx, api.deps.StaffSvc)
	if err != nil {
		return err
	}
	s, err := api.deps.DeviceSvc.Unlink(ctx.Request().Context(), &p, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "unlinking device")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *studentApi) requestDeletion(ctx echo.Context) error {
	p, err := getContextProfile(ctx, api.deps.StaffSvc)
	if err != nil {
		return err
	}
	ch, err := api.deps.StudentSvc.RequestDeletion(ctx.Request().Context(), &p, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "requesting deletion")
	}
	return ctx.JSON(http.StatusOK, ch)
}

type ConfirmDeletionRequest struct {
	Token string `json:"token" validate:"required"`
	Name  string `json:"name" validate:"required"`
}

func (api *studentApi) confirmDeletion(ctx echo.Context) error {
	p, err := getContextProfile(ctx, api.deps.StaffSvc)
	if err != nil {
		return err
	}

	var data ConfirmDeletionRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ConfirmDeletionRequest")
	}
	if err := api.deps.Validate.Struct(&data); err != nil {
		return err
	}

	if err := api.deps.StudentSvc.ConfirmDeletion(ctx.Request().Context(), &p, data.Token, data.Name); err != nil {
		return errors.Wrap(err, "confirming deletion")
	}
	return ctx.NoContent(http.StatusNoContent)
}
