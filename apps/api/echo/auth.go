package echoapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/shule-app/shule/core"
	"github.com/shule-app/shule/core/session"
	"github.com/shule-app/shule/identity"
	localidp "github.com/shule-app/shule/identity/local"
)

var (
	contextPrincipalKey = "principal"
	contextGuardKey     = "sessionGuard"

	errMissingToken = echo.NewHTTPError(http.StatusUnauthorized, "missing or malformed token")
)

// authMiddleware verifies the bearer token and rebuilds the session for this
// request: the principal comes straight out of the claims and the tenant is
// resolved through a fresh guard. No server-side session state is consulted.
func authMiddleware(conf *core.Config) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			auth := ctx.Request().Header.Get(echo.HeaderAuthorization)
			token, ok := strings.CutPrefix(auth, "Bearer ")
			if !ok || token == "" {
				return errMissingToken
			}

			claims, err := localidp.ParseToken(conf, token)
			if err != nil {
				return errUnauthorized
			}

			principal := &identity.Principal{
				ID:       claims.Subject,
				Email:    claims.Email,
				Metadata: claims.Metadata,
			}
			ctx.Set(contextPrincipalKey, principal)
			ctx.Set(contextGuardKey, session.GuardFor(principal))
			return next(ctx)
		}
	}
}

func getContextPrincipal(ctx echo.Context) (*identity.Principal, error) {
	if p, ok := ctx.Get(contextPrincipalKey).(*identity.Principal); ok {
		return p, nil
	}
	return nil, errUnauthorized
}

func getContextGuard(ctx echo.Context) (session.Guard, error) {
	if g, ok := ctx.Get(contextGuardKey).(session.Guard); ok {
		return g, nil
	}
	return session.Guard{}, errUnauthorized
}
