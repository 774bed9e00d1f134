package main

import (
	"context"
	"errors"
	"os"

	"golang.org/x/sync/errgroup"

	"networth/internal/amqp"
	"networth/internal/backend"
	"networth/internal/cli"
	applog "networth/internal/log"
	"networth/internal/worker"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	logger.Info("Starting networth-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if err := cfg.ValidateMirror(); err != nil {
		logger.Error("Mirror configuration invalid", applog.FieldError, err)
		return err
	}

	ctx, cancel := cli.ShutdownContext(context.Background(), logger)
	defer cancel()

	source := cli.InitBackend(ctx, logger, cfg)
	defer func() {
		if err := source.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", applog.FieldError, err)
		}
	}()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		return err
	}
	mirror, err := backend.OpenSheets(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err)
		return err
	}
	logger.Info("Google Sheets mirror initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		return err
	}
	defer amqpClient.Close()

	mirrorWorker := worker.NewMirrorWorker(source.Store, mirror)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return mirrorWorker.Run(gctx, cfg.MirrorInterval)
	})
	g.Go(func() error {
		return amqpClient.ConsumeSectionSaved(gctx, mirrorWorker.HandleSectionSaved)
	})

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", applog.FieldError, err)
		return err
	}
	logger.Info("Worker shutdown complete", "last_sync", mirrorWorker.LastSync())
	return nil
}
