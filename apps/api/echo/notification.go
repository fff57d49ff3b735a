package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/easyspeak/console/core/notification"
)

type notificationApi struct {
	deps ServerDeps
}

func registerNotificationAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := notificationApi{deps: deps}

	ng := g.Group("/notifications", jwt)
	ng.GET("", api.feed)
	ng.POST("", api.broadcast, adminMiddleware())
}

func (api *notificationApi) feed(ctx echo.Context) error {
	p, err := getContextProfile(ctx, api.deps.StaffSvc)
	if err != nil {
		return err
	}
	feed, err := api.deps.NotificationSvc.FeedFor(ctx.Request().Context(), &p)
	if err != nil {
		return errors.Wrap(err, "querying notification feed")
	}
	return ctx.JSON(http.StatusOK, feed)
}

func (api *notificationApi) broadcast(ctx echo.Context) error {
	p, err := getContextProfile(ctx, api.deps.StaffSvc)
	if err != nil {
		return err
	}

	var data notification.NewNotification
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewNotification")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	n, err := api.deps.NotificationSvc.Broadcast(ctx.Request().Context(), &p, data)
	if err != nil {
		return errors.Wrap(err, "broadcasting notification")
	}
	return ctx.JSON(http.StatusCreated, n)
}
