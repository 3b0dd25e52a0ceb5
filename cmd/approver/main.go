package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/lisanmuaddib/allowance-go/internal/appconfig"
	"github.com/lisanmuaddib/allowance-go/pkg/logging"
)

func main() {
	// Load .env and environment
	config, err := appconfig.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	log := logging.New(config.LogLevel, config.LogFormat, os.Stdout)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := appconfig.ConfigureApp(ctx, config, log, nil)
	if err != nil {
		log.WithError(err).Fatal("Failed to configure application")
	}
	defer app.Close()

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Info("Received shutdown signal")
		cancel()
	}()

	log.WithFields(logrus.Fields{
		"addr":     config.ListenAddr,
		"chain_id": config.DefaultChainID,
	}).Info("Starting approver")

	if err := app.Server.Start(ctx, config.ListenAddr); err != nil {
		app.Close()
		log.WithError(err).Fatal("Server stopped with error")
	}

	log.Info("Approver shutdown complete")
}
