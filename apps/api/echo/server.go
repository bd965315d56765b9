// Package echoapi exposes the application over HTTP. Auth is stateless: every
// request rebuilds the principal from its token claims and resolves the
// tenant through a request-scoped guard.
package echoapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/shule-app/shule/core"
	"github.com/shule-app/shule/core/messaging"
	"github.com/shule-app/shule/core/school"
	localidp "github.com/shule-app/shule/identity/local"
	"github.com/shule-app/shule/realtime"
)

type (
	Options struct {
		Conf           *core.Config
		Logger         core.Logger
		DisableReqLogs bool

		Provider  *localidp.Provider
		SchoolSvc *school.Service
		MsgRepo   messaging.Repository
		Realtime  *realtime.Manager
	}

	Server interface {
		http.Handler
		Start() error
		Stop(context.Context) error
	}

	server struct {
		opts *Options
		app  *echo.Echo
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	s := &server{
		opts: opts,
		app:  echo.New(),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.opts.Conf

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, func() { _ = s.Stop(context.Background()) })
	s.app.Debug = conf.Debug
	s.app.HideBanner = true

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	jwt := authMiddleware(conf)

	registerAuthAPI(v1, jwt, s.opts.Provider)
	registerSchoolAPI(v1, jwt, s.opts.SchoolSvc)
	registerMessagingAPI(v1, jwt, s.opts.MsgRepo, s.opts.Realtime, s.opts.Logger)
}

func (s *server) Start() error {
	return s.app.Start(s.opts.Conf.Server.Addr)
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Karibu Shule API!")
}
