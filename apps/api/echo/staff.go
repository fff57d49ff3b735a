package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/easyspeak/console/core"
	"github.com/easyspeak/console/core/access"
	"github.com/easyspeak/console/core/staff"
)

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	// SSOLoginRequest is posted by the SSO gateway after it has verified the
	// identity provider's assertion; uid is the provider's stable subject.
	SSOLoginRequest struct {
		UID   string `json:"uid" validate:"required"`
		Email string `json:"email" validate:"required,email"`
	}

	LoginResponse struct {
		Token   string        `json:"token"`
		Profile staff.Profile `json:"profile"`
	}
)

func (lr *LoginRequest) Validate(validate staff.Validator) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}

func (sr *SSOLoginRequest) Validate(validate staff.Validator) error {
	sr.UID = core.CleanString(sr.UID)
	sr.Email = core.CleanString(sr.Email, true /* lower */)
	return validate.Struct(sr)
}

type authApi struct {
	auth jwtAuth
	deps ServerDeps
}

func registerAuthAPI(g *echo.Group, jwt echo.MiddlewareFunc, auth jwtAuth, deps ServerDeps) {
	api := authApi{auth: auth, deps: deps}

	ag := g.Group("/auth")
	ag.POST("/login", api.login)
	ag.POST("/sso", api.ssoLogin)
	ag.POST("/register", api.register)
	ag.POST("/token-refresh", api.refreshToken, jwt)
}

func (api *authApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	claims, err := api.auth.authenticate(ctx, data.Email, data.Password, api.deps.StaffSvc)
	if err != nil {
		return err
	}
	return api.respondWithToken(ctx, claims)
}

// ssoLogin resolves a verified principal to its profile, admitting unknown
// principals only through a pending invite.
func (api *authApi) ssoLogin(ctx echo.Context) error {
	var data SSOLoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SSOLoginRequest")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	p, err := api.deps.StaffSvc.Resolve(ctx.Request().Context(), data.UID, data.Email)
	if err != nil {
		return errors.Wrap(err, "resolving profile")
	}
	p, err = api.deps.StaffSvc.SetLastLogin(ctx.Request().Context(), p)
	if err != nil {
		return errors.Wrap(err, "setting lastLogin")
	}
	return api.respondWithToken(ctx, api.auth.claimsFor(p))
}

func (api *authApi) register(ctx echo.Context) error {
	var data staff.RegisterStaff
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RegisterStaff")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	p, err := api.deps.StaffSvc.RegisterWithCode(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering staff")
	}

	claims := api.auth.claimsFor(p)
	token, err := api.auth.generateToken(claims)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusCreated, LoginResponse{Token: token, Profile: p})
}

func (api *authApi) refreshToken(ctx echo.Context) error {
	token, err := api.auth.refreshToken(ctx, api.deps.StaffSvc)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"token": token})
}

func (api *authApi) respondWithToken(ctx echo.Context, claims *Claims) error {
	token, err := api.auth.generateToken(claims)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	p, err := getContextProfile(ctx, api.deps.StaffSvc, *claims)
	if err != nil {
		return errors.Wrap(err, "getting profile")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token, Profile: p})
}

type staffApi struct {
	deps ServerDeps
}

func registerStaffAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := staffApi{deps: deps}

	sg := g.Group("/staff", jwt)
	sg.GET("/me", api.me)
	sg.GET("", api.query, adminMiddleware())
	sg.GET("/all", api.queryAll, superAdminMiddleware())
	sg.GET("/roles", api.queryRoles, adminMiddleware())
	sg.PUT("/:uid/access", api.updateAccess, adminMiddleware())
	sg.PUT("/:uid", api.updateSystemUser, superAdminMiddleware())
	sg.DELETE("/:uid", api.remove, adminMiddleware())
}

func (api *staffApi) me(ctx echo.Context) error {
	p, err := getContextProfile(ctx, api.deps.StaffSvc)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *staffApi) query(ctx echo.Context) error {
	p, err := getContextProfile(ctx, api.deps.StaffSvc)
	if err != nil {
		return err
	}
	profiles, err := api.deps.StaffSvc.QueryByOrg(ctx.Request().Context(), p.OrganizationID)
	if err != nil {
		return errors.Wrap(err, "querying staff")
	}
	return ctx.JSON(http.StatusOK, profiles)
}

func (api *staffApi) queryAll(ctx echo.Context) error {
	p, err := getContextProfile(ctx, api.deps.StaffSvc)
	if err != nil {
		return err
	}
	profiles, err := api.deps.StaffSvc.QueryAll(ctx.Request().Context(), p)
	if err != nil {
		return errors.Wrap(err, "querying all staff")
	}
	return ctx.JSON(http.StatusOK, profiles)
}

func (api *staffApi) queryRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, access.Roles)
}

func (api *staffApi) updateAccess(ctx echo.Context) error {
	p, err := getContextProfile(ctx, api.deps.StaffSvc)
	if err != nil {
		return err
	}

	var data staff.UpdateAccess
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAccess")
	}

	target, err := api.deps.StaffSvc.UpdateAccess(ctx.Request().Context(), p, ctx.Param("uid"), data)
	if err != nil {
		return errors.Wrap(err, "updating access")
	}
	return ctx.JSON(http.StatusOK, target)
}

func (api *staffApi) updateSystemUser(ctx echo.Context) error {
	p, err := getContextProfile(ctx, api.deps.StaffSvc)
	if err != nil {
		return err
	}

	var data staff.UpdateSystemUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSystemUser")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	target, err := api.deps.StaffSvc.UpdateSystemUser(ctx.Request().Context(), p, ctx.Param("uid"), data)
	if err != nil {
		return errors.Wrap(err, "updating system user")
	}
	return ctx.JSON(http.StatusOK, target)
}

func (api *staffApi) remove(ctx echo.Context) error {
	p, err := getContextProfile(ctx, api.deps.StaffSvc)
	if err != nil {
		return err
	}
	if err := api.deps.StaffSvc.Remove(ctx.Request().Context(), p, ctx.Param("uid")); err != nil {
		return errors.Wrap(err, "removing staff")
	}
	return ctx.NoContent(http.StatusNoContent)
}
