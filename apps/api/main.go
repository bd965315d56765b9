package main

import (
	stdlog "log"
	"os"

	"github.com/shule-app/shule/core"
	"github.com/shule-app/shule/core/school"
	localidp "github.com/shule-app/shule/identity/local"
	"github.com/shule-app/shule/realtime"
	emailsvc "github.com/shule-app/shule/services/email"
	logsvc "github.com/shule-app/shule/services/logger"
	"github.com/shule-app/shule/storage/database"
	pgrepos "github.com/shule-app/shule/storage/database/postgres"

	echoapi "github.com/shule-app/shule/apps/api/echo"
)

func main() {
	std := stdlog.New(os.Stdout, "API : ", stdlog.LstdFlags|stdlog.Lshortfile)

	conf, err := core.LoadConfig()
	if err != nil {
		std.Fatalf("loading config: %+v", err)
	}

	var logger core.Logger
	if conf.IsProd() {
		logger = logsvc.NewRollbarLogger(std, conf)
	} else {
		logger = logsvc.NewStdLogger(std, conf)
	}

	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal("opening database", err)
	}
	defer db.Close()

	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	sessions, err := localidp.NewRedisRefreshStore(conf.RedisURL)
	if err != nil {
		logger.Fatal("connecting refresh store", err)
	}
	defer sessions.Close()

	provider := localidp.NewProvider(conf, pgrepos.NewUserRepository(db), sessions, mailSvc, logger)
	defer provider.Close()

	transport, err := realtimeTransport(conf)
	if err != nil {
		logger.Fatal("connecting realtime transport", err)
	}
	rt := realtime.NewManager(transport, logger)
	defer rt.CloseAll()

	app := echoapi.NewServer(&echoapi.Options{
		Conf:      conf,
		Logger:    logger,
		Provider:  provider,
		SchoolSvc: school.NewService(pgrepos.NewSchoolRepository(db), provider),
		MsgRepo:   pgrepos.NewMessagingRepository(db),
		Realtime:  rt,
	})
	logger.Info("starting API server on " + conf.Server.Addr)
	if err := app.Start(); err != nil {
		logger.Fatal("server stopped", err)
	}
}

// realtimeTransport picks AMQP when configured, falling back to redis pub/sub.
func realtimeTransport(conf *core.Config) (realtime.Transport, error) {
	if conf.AMQPURL != "" {
		return realtime.NewAMQPTransport(conf.AMQPURL)
	}
	return realtime.NewRedisTransport(conf.RedisURL)
}
