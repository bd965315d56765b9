package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/shule-app/shule/core/school"
	"github.com/shule-app/shule/core/session"
)

type schoolApi struct {
	svc *school.Service
}

func registerSchoolAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *school.Service) {
	api := schoolApi{svc: svc}

	sg := g.Group("/schools", jwt)
	sg.POST("", api.create)
	sg.GET("", api.query)
	sg.GET("/:id", api.retrieve)
	sg.POST("/:id/provision", api.provision)
}

func (api *schoolApi) create(ctx echo.Context) error {
	var data school.NewSchool
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSchool")
	}

	sch, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, sch)
}

func (api *schoolApi) query(ctx echo.Context) error {
	schools, err := api.svc.QueryAll(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying schools")
	}
	return ctx.JSON(http.StatusOK, schools)
}

func (api *schoolApi) retrieve(ctx echo.Context) error {
	id, err := pathTenantID(ctx)
	if err != nil {
		return err
	}
	sch, err := api.svc.GetByID(ctx.Request().Context(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sch)
}

// provision stamps a school onto an account's attribute bag.
func (api *schoolApi) provision(ctx echo.Context) error {
	id, err := pathTenantID(ctx)
	if err != nil {
		return err
	}

	var data ProvisionRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ProvisionRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	if err := api.svc.Provision(ctx.Request().Context(), data.Email, id); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func pathTenantID(ctx echo.Context) (session.TenantID, error) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errHTTPNotFound
	}
	return session.TenantID(id), nil
}
