package main

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/carson-networks/recurring-server/api"
	"github.com/carson-networks/recurring-server/internal/clock"
	"github.com/carson-networks/recurring-server/internal/config"
	"github.com/carson-networks/recurring-server/internal/engine"
	"github.com/carson-networks/recurring-server/internal/logging"
	"github.com/carson-networks/recurring-server/internal/operator"
	"github.com/carson-networks/recurring-server/internal/service"
	"github.com/carson-networks/recurring-server/internal/storage"
)

func main() {
	logger := logging.SetupLogging()
	logrus.Info("recurring-server starting")

	envConfig, err := config.ProcessEnvironmentVariables()
	if err != nil {
		logrus.WithError(err).Fatal("config.ProcessEnvironmentVariables")
		return
	}

	dbStorage, err := storage.NewStorage(envConfig)
	if err != nil {
		logrus.WithError(err).Fatal("storage.NewStorage")
		return
	}

	runner := engine.NewRunner(
		dbStorage.Rules,
		dbStorage.Ledger,
		logger,
		envConfig.SchedulerCatchUpCap,
		envConfig.SchedulerCatchUpWindow,
	)

	delegator := operator.NewDelegator(runner, clock.UTC{})
	delegator.Start()
	defer delegator.Stop()

	loop := operator.NewLoop(delegator, envConfig.SchedulerPassInterval, logger)
	go loop.Run(context.Background())

	svc := service.NewService(dbStorage, clock.UTC{}, loop.Notify)

	httpRest := api.Rest{
		Logger:   logger,
		Port:     envConfig.HTTPPort,
		Service:  svc,
		Operator: delegator,
	}
	httpRest.Serve()
}
