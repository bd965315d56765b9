package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/shule-app/shule/core"
	"github.com/shule-app/shule/core/messaging"
	"github.com/shule-app/shule/core/school"
	"github.com/shule-app/shule/core/session"
	"github.com/shule-app/shule/identity"
	localidp "github.com/shule-app/shule/identity/local"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errNoSchool             = echo.NewHTTPError(http.StatusForbidden, "no school assigned to this account")
	errHTTPNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")
)

// mapSentinel translates well-known application errors to HTTP errors; a nil
// return means the error is not a sentinel and falls through to the generic
// handling.
func mapSentinel(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, identity.ErrInvalidCredentials):
		return errAuthenticationFailed
	case errors.Is(err, identity.ErrAccountDeactivated):
		return errAccountDeactivated
	case errors.Is(err, identity.ErrEmailExists):
		return echo.NewHTTPError(http.StatusBadRequest, "an account with this email already exists")
	case errors.Is(err, identity.ErrNotAuthenticated), errors.Is(err, identity.ErrNoSession):
		return errUnauthorized
	case errors.Is(err, session.ErrTenantUnavailable):
		return errNoSchool
	case errors.Is(err, localidp.ErrRefreshNotFound):
		return errRefreshExpired
	case errors.Is(err, localidp.ErrInvalidResetToken), errors.Is(err, localidp.ErrResetTokenExpired):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, localidp.ErrUserNotFound),
		errors.Is(err, messaging.ErrNotFound),
		errors.Is(err, school.ErrNotFound):
		return errHTTPNotFound
	}
	return nil
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how
// to handle our errors. signalShutdown is called in order to gracefully
// shutdown the Server whenever a core shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		if herr := mapSentinel(err); herr != nil {
			code = herr.Code
			message = herr.Message
		} else {
			switch origErr := errors.Cause(err).(type) {
			case *echo.HTTPError:
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
					fldErrs[vErr.Field()] = vErr.Translate(core.Translator)
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

				args := []interface{}{errors.Wrap(err, msg)}
				if principal, pErr := getContextPrincipal(ctx); pErr == nil {
					args = append(args, principal)
				}
				logger.Error(msg, args...)

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
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
