package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	localidp "github.com/shule-app/shule/identity/local"
)

type authApi struct {
	provider *localidp.Provider
}

func registerAuthAPI(g *echo.Group, jwt echo.MiddlewareFunc, provider *localidp.Provider) {
	api := authApi{provider: provider}

	ag := g.Group("/auth")

	// un-authed endpoints
	// TODO: rate limit `/password-reset` & `/password-reset-confirm`
	ag.POST("/login", api.login)
	ag.POST("/signup", api.signup)
	ag.POST("/token-refresh", api.refreshToken)
	ag.POST("/logout", api.logout)
	ag.POST("/password-reset", api.resetPassword)
	ag.POST("/password-reset-confirm", api.confirmPasswordReset)

	// authed endpoints
	mg := ag.Group("/me", jwt)
	mg.GET("", api.me)
	mg.PUT("", api.updateProfile)
}

func (api *authApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	sess, err := api.provider.SignInWithPassword(ctx.Request().Context(), data.Email, data.Password)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sess)
}

func (api *authApi) signup(ctx echo.Context) error {
	var data SignupRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SignupRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	sess, err := api.provider.SignUp(ctx.Request().Context(), data.Email, data.Password, data.Metadata)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, sess)
}

func (api *authApi) refreshToken(ctx echo.Context) error {
	var data RefreshRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RefreshRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	sess, err := api.provider.Renew(ctx.Request().Context(), data.RefreshToken)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sess)
}

func (api *authApi) logout(ctx echo.Context) error {
	var data RefreshRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RefreshRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	if err := api.provider.RevokeRefresh(ctx.Request().Context(), data.RefreshToken); err != nil {
		return errors.Wrap(err, "revoking refresh token")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *authApi) resetPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	// an unknown email reads the same as a known one
	if err := api.provider.RequestPasswordReset(ctx.Request().Context(), data.Email); err != nil &&
		!errors.Is(err, localidp.ErrUserNotFound) {
		return errors.Wrap(err, "requesting password reset")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *authApi) confirmPasswordReset(ctx echo.Context) error {
	var data PasswordResetConfirmRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetConfirmRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	if err := api.provider.ResetPassword(ctx.Request().Context(), data.UID, data.Token, data.Password); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *authApi) me(ctx echo.Context) error {
	principal, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	guard, err := getContextGuard(ctx)
	if err != nil {
		return err
	}
	tenant, _ := guard.TenantOrNone()
	return ctx.JSON(http.StatusOK, echo.Map{
		"user":      principal,
		"school_id": tenant,
		"ready":     guard.Ready(),
	})
}

func (api *authApi) updateProfile(ctx echo.Context) error {
	principal, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}

	var data ProfileUpdateRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ProfileUpdateRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	updated, err := api.provider.UpdateUserByID(ctx.Request().Context(), principal.ID, data.Metadata)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, updated)
}
