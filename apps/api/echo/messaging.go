package echoapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/shule-app/shule/core"
	"github.com/shule-app/shule/core/messaging"
	"github.com/shule-app/shule/realtime"
)

type messagingApi struct {
	repo     messaging.Repository
	realtime *realtime.Manager
	logger   core.Logger
}

func registerMessagingAPI(g *echo.Group, jwt echo.MiddlewareFunc, repo messaging.Repository, rt *realtime.Manager, logger core.Logger) {
	api := messagingApi{repo: repo, realtime: rt, logger: logger}

	cg := g.Group("/conversations", jwt)
	cg.POST("", api.createConversation)
	cg.GET("", api.queryConversations)
	cg.GET("/:id", api.retrieveConversation)
	cg.GET("/:id/messages", api.queryMessages)
	cg.POST("/:id/messages", api.sendMessage)
	cg.GET("/:id/events", api.streamEvents)
}

// service builds the request-scoped messaging service: the guard carries this
// request's tenant resolution, nothing else is per-request.
func (api *messagingApi) service(ctx echo.Context) (*messaging.Service, error) {
	guard, err := getContextGuard(ctx)
	if err != nil {
		return nil, err
	}
	return messaging.NewService(api.repo, guard, api.realtime, api.logger), nil
}

func (api *messagingApi) createConversation(ctx echo.Context) error {
	svc, err := api.service(ctx)
	if err != nil {
		return err
	}

	var data messaging.NewConversation
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewConversation")
	}

	conv, err := svc.CreateConversation(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, conv)
}

func (api *messagingApi) queryConversations(ctx echo.Context) error {
	svc, err := api.service(ctx)
	if err != nil {
		return err
	}

	convs, err := svc.QueryConversations(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, convs)
}

func (api *messagingApi) retrieveConversation(ctx echo.Context) error {
	svc, err := api.service(ctx)
	if err != nil {
		return err
	}
	id, err := pathID(ctx)
	if err != nil {
		return err
	}

	conv, err := svc.GetConversation(ctx.Request().Context(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, conv)
}

func (api *messagingApi) queryMessages(ctx echo.Context) error {
	svc, err := api.service(ctx)
	if err != nil {
		return err
	}
	id, err := pathID(ctx)
	if err != nil {
		return err
	}

	msgs, err := svc.QueryMessages(ctx.Request().Context(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, msgs)
}

func (api *messagingApi) sendMessage(ctx echo.Context) error {
	svc, err := api.service(ctx)
	if err != nil {
		return err
	}
	id, err := pathID(ctx)
	if err != nil {
		return err
	}

	var data messaging.NewMessage
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMessage")
	}

	msg, err := svc.SendMessage(ctx.Request().Context(), id, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, msg)
}

// streamEvents pushes row-changed hints for one conversation as server-sent
// events. The hint carries only the topic; clients re-fetch on receipt.
func (api *messagingApi) streamEvents(ctx echo.Context) error {
	svc, err := api.service(ctx)
	if err != nil {
		return err
	}
	id, err := pathID(ctx)
	if err != nil {
		return err
	}

	reqCtx := ctx.Request().Context()

	// scoped existence check; a foreign tenant's conversation reads as absent
	conv, err := svc.GetConversation(reqCtx, id)
	if err != nil {
		return err
	}

	hints := make(chan string, 8)
	handle, err := api.realtime.Open(reqCtx, conv.Topic(), func(topic string) {
		select {
		case hints <- topic:
		default: // drop: clients re-fetch, a lost hint only delays them
		}
	})
	if err != nil {
		return errors.Wrap(err, "opening realtime subscription")
	}
	defer func() {
		if err := api.realtime.Close(handle); err != nil {
			api.logger.Error("closing realtime subscription", err)
		}
	}()

	res := ctx.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-store")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	for {
		select {
		case <-reqCtx.Done():
			return nil
		case topic := <-hints:
			if _, err := fmt.Fprintf(res, "event: change\ndata: %s\n\n", topic); err != nil {
				return nil // client went away
			}
			res.Flush()
		}
	}
}

func pathID(ctx echo.Context) (int64, error) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errHTTPNotFound
	}
	return id, nil
}
