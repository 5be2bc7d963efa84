package main

import (
	"context"
	"errors"
	"os"

	"splitperfect/internal/amqp"
	"splitperfect/internal/blob"
	"splitperfect/internal/cli"
	"splitperfect/internal/log"
	"splitperfect/internal/metrics"
	"splitperfect/internal/receipt"
	"splitperfect/internal/worker"
)

func main() {
	cfg, logger := cli.Bootstrap()
	logger.Info("starting parse-worker", log.FieldOperation, log.OpStartup)

	if !cfg.AMQPEnabled() {
		logger.Error("AMQP_URL must be set for the parse worker")
		os.Exit(1)
	}

	store := cli.OpenStore(cfg, logger)
	defer store.Close()

	blobs, err := blob.NewLocalStore(cfg.BlobDir)
	if err != nil {
		logger.Error("open blob store failed", log.FieldError, err)
		os.Exit(1)
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPParseQueue, logger.WithComponent(log.ComponentAMQP))
	if err != nil {
		logger.Error("connect AMQP failed", log.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()

	parseWorker := worker.NewParseWorker(store, blobs,
		receipt.NewPlainTextExtractor(),
		receipt.NewLineParser(),
		metrics.New(),
		logger)

	ctx, stop := cli.SignalContext()
	defer stop()

	if err := client.Consume(ctx, parseWorker.HandleMessage); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("consume failed", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("worker stopped", log.FieldOperation, log.OpShutdown)
}
