// Package worker runs the receipt parse pipeline: fetch the uploaded
// image, extract text, parse line items, store the structured result
// for the API to serve.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"splitperfect/internal/amqp"
	"splitperfect/internal/blob"
	"splitperfect/internal/log"
	"splitperfect/internal/metrics"
	"splitperfect/internal/receipt"
	"splitperfect/internal/storage"
)

type ParseWorker struct {
	store     storage.Store
	blobs     blob.Store
	extractor receipt.TextExtractor
	parser    receipt.ItemParser
	metrics   *metrics.Metrics
	logger    *log.Logger
}

func NewParseWorker(store storage.Store, blobs blob.Store, extractor receipt.TextExtractor, parser receipt.ItemParser, m *metrics.Metrics, logger *log.Logger) *ParseWorker {
	return &ParseWorker{
		store:     store,
		blobs:     blobs,
		extractor: extractor,
		parser:    parser,
		metrics:   m,
		logger:    logger.WithComponent(log.ComponentWorker),
	}
}

// HandleMessage processes one parse job delivery. Malformed payloads
// and vanished blobs are discarded; transient failures requeue.
func (w *ParseWorker) HandleMessage(ctx context.Context, body []byte) error {
	job, err := amqp.ParseJobFromJSON(body)
	if err != nil {
		w.logger.ErrorContext(ctx, "malformed parse job", log.FieldError, err)
		w.metrics.ParseJob("malformed")
		return amqp.ErrDiscard
	}
	if err := w.Process(ctx, job); err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			w.logger.WarnContext(ctx, "receipt image gone, dropping job",
				log.FieldImageKey, job.ImageKey)
			w.metrics.ParseJob("missing_image")
			return amqp.ErrDiscard
		}
		w.metrics.ParseJob("error")
		return err
	}
	w.metrics.ParseJob("ok")
	return nil
}

// Process runs the extract-parse-store pipeline for one job.
func (w *ParseWorker) Process(ctx context.Context, job *amqp.ParseJob) error {
	w.logger.InfoContext(ctx, "parsing receipt",
		log.FieldImageKey, job.ImageKey,
		log.FieldRoomID, job.RoomID,
		log.FieldOperation, log.OpParse)

	image, err := w.blobs.Get(ctx, job.ImageKey)
	if err != nil {
		return fmt.Errorf("load receipt image: %w", err)
	}

	text, err := w.extractor.ExtractText(ctx, image)
	if err != nil {
		return fmt.Errorf("extract text from %s: %w", job.ImageKey, err)
	}

	parsed, err := w.parser.ParseText(ctx, text)
	if err != nil {
		return fmt.Errorf("parse receipt text: %w", err)
	}

	payload, err := json.Marshal(parsed)
	if err != nil {
		return fmt.Errorf("encode parse result: %w", err)
	}
	if err := w.store.SaveParsedReceipt(ctx, job.ImageKey, payload); err != nil {
		return fmt.Errorf("save parse result: %w", err)
	}

	w.logger.InfoContext(ctx, "receipt parsed",
		log.FieldImageKey, job.ImageKey,
		"items", len(parsed.Items))
	return nil
}
