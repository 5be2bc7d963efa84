package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"splitperfect/internal/amqp"
	"splitperfect/internal/blob"
	"splitperfect/internal/core"
	"splitperfect/internal/log"
	"splitperfect/internal/metrics"
	"splitperfect/internal/receipt"
	"splitperfect/internal/storage"
)

// ItemInput is one bill line from the API. Monetary values arrive as
// decimals and are converted to cents on entry.
type ItemInput struct {
	Description string
	Quantity    int64
	UnitPrice   float64
	Amount      float64
	SharedBy    []int64
}

// BillService handles receipt uploads, parse requests and bill
// persistence. Events are published best effort: a broker outage never
// fails a write that already landed in storage.
type BillService struct {
	store      storage.Store
	blobs      blob.Store
	extractor  receipt.TextExtractor
	parser     receipt.ItemParser
	events     Publisher
	parseQueue string
	rooms      *RoomService
	metrics    *metrics.Metrics
	logger     *log.Logger
}

func NewBillService(store storage.Store, blobs blob.Store, extractor receipt.TextExtractor, parser receipt.ItemParser, events Publisher, parseQueue string, rooms *RoomService, m *metrics.Metrics, logger *log.Logger) *BillService {
	return &BillService{
		store:      store,
		blobs:      blobs,
		extractor:  extractor,
		parser:     parser,
		events:     events,
		parseQueue: parseQueue,
		rooms:      rooms,
		metrics:    m,
		logger:     logger.WithComponent(log.ComponentBill),
	}
}

// UploadReceipt stores the image and queues a parse job for the
// worker. The returned key is later passed back as the bill image URL.
func (s *BillService) UploadReceipt(ctx context.Context, userID, roomID int64, data []byte, ext string) (string, error) {
	if err := s.rooms.requireMember(ctx, roomID, userID); err != nil {
		return "", err
	}

	key, err := s.blobs.Put(ctx, data, ext)
	if err != nil {
		return "", fmt.Errorf("store receipt image: %w", err)
	}

	s.publish(ctx, s.parseQueue, func() ([]byte, error) {
		return amqp.NewParseJob(key, roomID, userID).ToJSON()
	})

	s.logger.InfoContext(ctx, "receipt uploaded",
		log.FieldRoomID, roomID,
		log.FieldUserID, userID,
		log.FieldImageKey, key,
		log.FieldOperation, log.OpUpload)
	return key, nil
}

// Parse runs the extractor and parser over an uploaded image in one
// call, persisting nothing. The client reviews the items before
// creating the bill.
func (s *BillService) Parse(ctx context.Context, data []byte) (*receipt.ParsedReceipt, error) {
	text, err := s.extractor.ExtractText(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("extract receipt text: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrNoReceiptText
	}
	parsed, err := s.parser.ParseText(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("parse receipt text: %w", err)
	}
	return parsed, nil
}

// ParsedReceipt returns the structured parse result for an uploaded
// image, or storage.ErrNotFound while the worker has not finished.
func (s *BillService) ParsedReceipt(ctx context.Context, imageKey string) (*receipt.ParsedReceipt, error) {
	payload, err := s.store.GetParsedReceipt(ctx, imageKey)
	if err != nil {
		return nil, err
	}
	var parsed receipt.ParsedReceipt
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, fmt.Errorf("decode parsed receipt %s: %w", imageKey, err)
	}
	return &parsed, nil
}

// Create persists a bill from confirmed line items. The bill total is
// the sum of item amounts and every sharer must be a room member.
func (s *BillService) Create(ctx context.Context, userID, roomID int64, imageURL string, items []ItemInput) (*core.Bill, error) {
	if err := s.rooms.requireMember(ctx, roomID, userID); err != nil {
		return nil, err
	}

	members, err := s.store.ListMembers(ctx, roomID)
	if err != nil {
		return nil, err
	}
	memberSet := make(map[int64]struct{}, len(members))
	for _, m := range members {
		memberSet[m.ID] = struct{}{}
	}

	bill := &core.Bill{
		RoomID:     roomID,
		UploadedBy: userID,
		ImageURL:   imageURL,
		Items:      make([]core.Item, len(items)),
	}
	var total int64
	last := len(items) - 1
	for i, in := range items {
		for _, sharer := range in.SharedBy {
			if _, ok := memberSet[sharer]; !ok {
				return nil, fmt.Errorf("sharer %d is not a member of room %d: %w", sharer, roomID, core.ErrNoSharers)
			}
		}
		item := core.Item{
			Description: in.Description,
			Quantity:    in.Quantity,
			UnitPrice:   core.FromDecimal(in.UnitPrice),
			SharedBy:    append([]int64(nil), in.SharedBy...),
		}
		// Amounts derive from quantity and unit price, never from the
		// client. Only the final line may state its own amount, to
		// absorb receipt rounding.
		item.Amount = item.ComputedAmount()
		if i == last {
			if stated := core.FromDecimal(in.Amount); stated.Cents != 0 {
				item.Amount = stated
			}
		}
		bill.Items[i] = item
		total += item.Amount.Cents
	}
	bill.Total = core.Money{Cents: total}

	if err := bill.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.CreateBill(ctx, bill); err != nil {
		return nil, fmt.Errorf("create bill: %w", err)
	}
	s.rooms.invalidateSummary(roomID)

	s.publish(ctx, amqp.KeyBillCreated, func() ([]byte, error) {
		return amqp.NewBillEvent(bill.ID, roomID, userID).ToJSON()
	})

	s.logger.InfoContext(ctx, "bill created",
		log.FieldBillID, bill.ID,
		log.FieldRoomID, roomID,
		log.FieldUserID, userID,
		log.FieldAmount, core.DecimalCents(total),
		log.FieldOperation, log.OpCreate)
	return bill, nil
}

// ListForRoom returns all bills in a room, newest first.
func (s *BillService) ListForRoom(ctx context.Context, userID, roomID int64) ([]core.Bill, error) {
	if err := s.rooms.requireMember(ctx, roomID, userID); err != nil {
		return nil, err
	}
	return s.store.ListRoomBills(ctx, roomID)
}

// Get returns a bill with items. Only room members may look.
func (s *BillService) Get(ctx context.Context, userID, billID int64) (*core.Bill, error) {
	bill, err := s.store.GetBill(ctx, billID)
	if err != nil {
		return nil, err
	}
	if err := s.rooms.requireMember(ctx, bill.RoomID, userID); err != nil {
		return nil, err
	}
	return bill, nil
}

// Delete removes a bill and its image. Only the uploader may delete.
func (s *BillService) Delete(ctx context.Context, userID, billID int64) error {
	bill, err := s.store.GetBill(ctx, billID)
	if err != nil {
		return err
	}
	if bill.UploadedBy != userID {
		return ErrNotUploader
	}

	if bill.ImageURL != "" {
		if err := s.blobs.Delete(ctx, bill.ImageURL); err != nil {
			s.logger.WarnContext(ctx, "delete receipt image failed",
				log.FieldBillID, billID,
				log.FieldImageKey, bill.ImageURL,
				log.FieldError, err)
		}
	}
	if err := s.store.DeleteBill(ctx, billID); err != nil {
		return err
	}
	s.rooms.invalidateSummary(bill.RoomID)

	s.publish(ctx, amqp.KeyBillDeleted, func() ([]byte, error) {
		return amqp.NewBillEvent(billID, bill.RoomID, userID).ToJSON()
	})

	s.logger.InfoContext(ctx, "bill deleted",
		log.FieldBillID, billID,
		log.FieldRoomID, bill.RoomID,
		log.FieldUserID, userID,
		log.FieldOperation, log.OpDelete)
	return nil
}

// publish sends an event if a broker is configured. Failures are
// logged, never propagated.
func (s *BillService) publish(ctx context.Context, routingKey string, encode func() ([]byte, error)) {
	if s.events == nil {
		return
	}
	body, err := encode()
	if err != nil {
		s.logger.ErrorContext(ctx, "encode event failed", log.FieldError, err)
		return
	}
	if err := s.events.Publish(ctx, routingKey, body); err != nil {
		s.logger.ErrorContext(ctx, "publish event failed",
			"routing_key", routingKey,
			log.FieldError, err)
		return
	}
	s.metrics.EventPublished(routingKey)
}
