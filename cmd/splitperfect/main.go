package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"splitperfect/internal/amqp"
	"splitperfect/internal/auth"
	"splitperfect/internal/blob"
	"splitperfect/internal/cache"
	"splitperfect/internal/cli"
	"splitperfect/internal/engine"
	apphttp "splitperfect/internal/http"
	"splitperfect/internal/log"
	"splitperfect/internal/metrics"
	"splitperfect/internal/receipt"
	"splitperfect/internal/services"
)

func main() {
	cfg, logger := cli.Bootstrap()
	logger.Info("starting splitperfect", log.FieldOperation, log.OpStartup)

	store := cli.OpenStore(cfg, logger)
	defer store.Close()

	blobs, err := blob.NewLocalStore(cfg.BlobDir)
	if err != nil {
		logger.Error("open blob store failed", log.FieldError, err)
		os.Exit(1)
	}

	var events services.Publisher
	var amqpClient *amqp.Client
	if cfg.AMQPEnabled() {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPParseQueue, logger.WithComponent(log.ComponentAMQP))
		if err != nil {
			logger.Error("connect AMQP failed", log.FieldError, err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		events = amqpClient
		logger.Info("AMQP connected", "exchange", cfg.AMQPExchange)
	} else {
		logger.Warn("AMQP disabled, receipt parsing is unavailable")
	}

	m := metrics.New()
	summaries := cache.NewLRU[*engine.Summary](cfg.SummaryCacheSize, cfg.SummaryCacheTTL)

	rooms := services.NewRoomService(store, summaries, m, logger)
	bills := services.NewBillService(store, blobs,
		receipt.NewPlainTextExtractor(), receipt.NewLineParser(),
		events, cfg.AMQPParseQueue, rooms, m, logger)

	server := apphttp.NewServer(apphttp.Deps{
		Config:   cfg,
		Rooms:    rooms,
		Bills:    bills,
		Store:    store,
		JWT:      auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL),
		Verifier: auth.NewIDTokenVerifier(cfg.GoogleClientID),
		Metrics:  m,
		Logger:   logger,
	})

	ctx, stop := cli.SignalContext()
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(server.ListenAndServe)
	g.Go(func() error {
		cache.Sweep(ctx, summaries, time.Minute)
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down", log.FieldOperation, log.OpShutdown)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server exited with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
