package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type deviceApi struct {
	deps ServerDeps
}

// registerDeviceAPI exposes the device-facing pairing endpoint. Devices hold
// no staff credentials; the code they receive is single-use and expires with
// the handshake.
func registerDeviceAPI(g *echo.Group, deps ServerDeps) {
	api := deviceApi{deps: deps}

	dg := g.Group("/devices")
	dg.POST("/pairing-codes", api.registerCode)
}

type RegisterCodeRequest struct {
	DeviceName string `json:"device_name"`
}

func (api *deviceApi) registerCode(ctx echo.Context) error {
	var data RegisterCodeRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RegisterCodeRequest")
	}

	pc, err := api.deps.DeviceSvc.RegisterCode(ctx.Request().Context(), data.DeviceName)
	if err != nil {
		return errors.Wrap(err, "registering pairing code")
	}
	return ctx.JSON(http.StatusCreated, pc)
}
