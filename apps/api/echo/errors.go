package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/easyspeak/console/core"
	"github.com/easyspeak/console/core/device"
	"github.com/easyspeak/console/core/invite"
	"github.com/easyspeak/console/core/library"
	"github.com/easyspeak/console/core/notification"
	"github.com/easyspeak/console/core/org"
	"github.com/easyspeak/console/core/school"
	"github.com/easyspeak/console/core/staff"
	"github.com/easyspeak/console/core/student"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")
)

// sentinel -> HTTP status. Anything not listed is a server error.
var errStatusMap = map[error]int{
	staff.ErrNotFound:       http.StatusNotFound,
	invite.ErrNotFound:      http.StatusNotFound,
	org.ErrNotFound:         http.StatusNotFound,
	school.ErrNotFound:      http.StatusNotFound,
	student.ErrNotFound:     http.StatusNotFound,
	device.ErrNotFound:      http.StatusNotFound,
	library.ErrNotFound:     http.StatusNotFound,
	staff.ErrEmailExists:    http.StatusBadRequest,
	staff.ErrNotInvited:     http.StatusForbidden,
	invite.ErrAlreadyAccepted: http.StatusConflict,
	student.ErrQuotaExceeded:  http.StatusConflict,
	student.ErrNotLicensed:    http.StatusBadRequest,
	student.ErrNotLinked:      http.StatusBadRequest,
	student.ErrChallengeExpired:   http.StatusBadRequest,
	student.ErrConfirmationFailed: http.StatusBadRequest,
	org.ErrChallengeExpired:       http.StatusBadRequest,
	org.ErrConfirmationFailed:     http.StatusBadRequest,
	device.ErrHandshakeIncomplete: http.StatusConflict,

	staff.ErrPermissionDenied:        http.StatusForbidden,
	invite.ErrPermissionDenied:       http.StatusForbidden,
	org.ErrPermissionDenied:          http.StatusForbidden,
	student.ErrPermissionDenied:      http.StatusForbidden,
	library.ErrPermissionDenied:      http.StatusForbidden,
	notification.ErrPermissionDenied: http.StatusForbidden,
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how
// to handle our errors. signalShutdown is called whenever a core shutdown
// error is caught so the server can stop gracefully.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		cause := errors.Cause(err)
		if status, ok := errStatusMap[cause]; ok {
			code = status
			message = cause.Error()
		} else {
			switch origErr := cause.(type) {
			case *echo.HTTPError:
				if origErr == middleware.ErrJWTMissing {
					code = http.StatusUnauthorized
					message = origErr.Message
					break
				}
				if origErr.Internal != nil {
					if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
						origErr = herr
					}
				}
				code = origErr.Code
				message = origErr.Message
			case validator.ValidationErrors:
				fldErrs := make(map[string]string, len(origErr))
				for _, vErr := range origErr {
					fldErrs[vErr.Field()] = vErr.Translate(translator)
				}
				code = http.StatusBadRequest
				message = fldErrs
			case *core.ValidationError:
				if origErr.Fields != nil {
					fldErrs := make(map[string]string, len(origErr.Fields))
					for _, fErr := range origErr.Fields {
						fldErrs[fErr.Field] = fErr.Error
					}
					message = fldErrs
				} else {
					message = origErr.Error()
				}
				code = http.StatusBadRequest
			default: // any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				message = msg

				args := make([]interface{}, 0, 1)
				if claims, cErr := getContextClaims(ctx); cErr == nil {
					args = append(args, staff.Profile{UID: claims.Subject, Name: claims.Name, Email: claims.Email})
				}
				logger.Error(msg, errors.Wrap(err, msg), args...)

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		if ctx.Echo().Debug {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
