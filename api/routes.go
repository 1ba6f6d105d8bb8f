package api

import (
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/sirupsen/logrus"

	"github.com/carson-networks/recurring-server/internal/handlers/v1/rule"
	"github.com/carson-networks/recurring-server/internal/handlers/v1/scheduler"
	"github.com/carson-networks/recurring-server/internal/handlers/v1/status"
	"github.com/carson-networks/recurring-server/internal/logging"
	"github.com/carson-networks/recurring-server/internal/operator"
	"github.com/carson-networks/recurring-server/internal/service"
)

type Rest struct {
	Logger   *logrus.Logger
	Port     string
	Service  *service.Service
	Operator *operator.Delegator
}

func (r *Rest) Serve() {
	mux := http.NewServeMux()

	statusHandler := status.NewHandler()
	mux.HandleFunc("/status", logging.LoggingWrapper("Status", r.Logger, statusHandler.Handler))

	humaAPI := humago.New(mux, huma.DefaultConfig("Recurring Server", "1.0.0"))
	rule.NewCreateRuleHandler(r.Service.Rule).Register(humaAPI)
	rule.NewListRulesHandler(r.Service.Rule).Register(humaAPI)
	rule.NewGetRuleHandler(r.Service.Rule).Register(humaAPI)
	rule.NewUpdateRuleHandler(r.Service.Rule).Register(humaAPI)
	rule.NewPauseRuleHandler(r.Service.Rule).Register(humaAPI)
	rule.NewDeleteRuleHandler(r.Service.Rule).Register(humaAPI)
	rule.NewUpcomingHandler(r.Service.Rule).Register(humaAPI)
	scheduler.NewRunPassHandler(r.Operator).Register(humaAPI)

	server := http.Server{
		Addr:              ":" + r.Port,
		Handler:           requestLogData(r.Logger, mux),
		ReadTimeout:       time.Duration(30) * time.Second,
		WriteTimeout:      time.Duration(30) * time.Second,
		IdleTimeout:       time.Duration(10) * time.Second,
		ReadHeaderTimeout: time.Duration(10) * time.Second,
	}

	r.Logger.Info("HttpServer.Serve.listening")
	err := server.ListenAndServe()
	if err != nil {
		r.Logger.WithError(err).Error("HttpServer.Serve.listen error")
	}
	r.Logger.Info("HttpServer.Serve.shutting down")
}
