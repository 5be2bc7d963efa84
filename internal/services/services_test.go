package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"splitperfect/internal/blob"
	"splitperfect/internal/cache"
	"splitperfect/internal/core"
	"splitperfect/internal/engine"
	"splitperfect/internal/log"
	"splitperfect/internal/metrics"
	"splitperfect/internal/receipt"
	"splitperfect/internal/storage"
)

type capturePublisher struct {
	keys   []string
	bodies [][]byte
}

func (p *capturePublisher) Publish(_ context.Context, routingKey string, body []byte) error {
	p.keys = append(p.keys, routingKey)
	p.bodies = append(p.bodies, body)
	return nil
}

type fixture struct {
	store  *storage.MemoryStore
	rooms  *RoomService
	bills  *BillService
	events *capturePublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := storage.NewMemoryStore()
	summaries := cache.NewLRU[*engine.Summary](16, time.Minute)
	m := metrics.New()
	logger := log.NewNop()

	blobs, err := blob.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore() error = %v", err)
	}

	events := &capturePublisher{}
	rooms := NewRoomService(store, summaries, m, logger)
	bills := NewBillService(store, blobs,
		receipt.NewPlainTextExtractor(), receipt.NewLineParser(),
		events, "receipt_parse", rooms, m, logger)
	return &fixture{store: store, rooms: rooms, bills: bills, events: events}
}

func (f *fixture) user(t *testing.T, name string) *core.User {
	t.Helper()
	u, err := f.store.UpsertGoogleUser(context.Background(), "g-"+name, name+"@example.com", name, "")
	if err != nil {
		t.Fatalf("UpsertGoogleUser(%s) error = %v", name, err)
	}
	return u
}

func TestRoomCreateAndJoin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ada := f.user(t, "ada")
	bob := f.user(t, "bob")

	room, err := f.rooms.Create(ctx, ada.ID, "Ski Trip")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if room.MemberCount != 1 || room.Secret == "" {
		t.Errorf("Create() = %+v, want 1 member and a secret", room)
	}

	joined, err := f.rooms.Join(ctx, bob.ID, room.Secret)
	if err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	if joined.ID != room.ID || joined.MemberCount != 2 {
		t.Errorf("Join() = %+v, want room %d with 2 members", joined, room.ID)
	}

	if _, err := f.rooms.Join(ctx, bob.ID, room.Secret); !errors.Is(err, storage.ErrAlreadyMember) {
		t.Errorf("Join(twice) error = %v, want ErrAlreadyMember", err)
	}
	if _, err := f.rooms.Join(ctx, bob.ID, "wrong-secret"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Join(bad secret) error = %v, want ErrNotFound", err)
	}
}

func TestRoomCreateRejectsEmptyName(t *testing.T) {
	f := newFixture(t)
	ada := f.user(t, "ada")

	if _, err := f.rooms.Create(context.Background(), ada.ID, "  "); !errors.Is(err, core.ErrEmptyName) {
		t.Errorf("Create(blank name) error = %v, want ErrEmptyName", err)
	}
}

func TestRoomAccessControl(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ada := f.user(t, "ada")
	eve := f.user(t, "eve")

	room, err := f.rooms.Create(ctx, ada.ID, "Flat")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if _, _, err := f.rooms.Get(ctx, eve.ID, room.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("Get(non-member) error = %v, want ErrForbidden", err)
	}
	if _, err := f.rooms.Summary(ctx, eve.ID, room.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("Summary(non-member) error = %v, want ErrForbidden", err)
	}
	if err := f.rooms.Delete(ctx, eve.ID, room.ID); !errors.Is(err, ErrNotCreator) {
		t.Errorf("Delete(non-creator) error = %v, want ErrNotCreator", err)
	}
	if err := f.rooms.Delete(ctx, ada.ID, room.ID); err != nil {
		t.Errorf("Delete(creator) error = %v", err)
	}
}

func TestBillCreateComputesTotalAndPublishes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ada := f.user(t, "ada")
	bob := f.user(t, "bob")

	room, err := f.rooms.Create(ctx, ada.ID, "Dinner Club")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := f.rooms.Join(ctx, bob.ID, room.Secret); err != nil {
		t.Fatalf("Join() error = %v", err)
	}

	bill, err := f.bills.Create(ctx, ada.ID, room.ID, "", []ItemInput{
		{Description: "Pizza", Quantity: 2, UnitPrice: 5.00, SharedBy: []int64{ada.ID, bob.ID}},
		{Description: "Beer", Quantity: 1, UnitPrice: 4.00, Amount: 4.00, SharedBy: []int64{bob.ID}},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if bill.Total.Cents != 1400 {
		t.Errorf("bill total = %d, want 1400", bill.Total.Cents)
	}
	// First item amount derived from quantity and unit price.
	if bill.Items[0].Amount.Cents != 1000 {
		t.Errorf("derived amount = %d, want 1000", bill.Items[0].Amount.Cents)
	}

	if len(f.events.keys) != 1 || f.events.keys[0] != "bill.created" {
		t.Errorf("published keys = %v, want [bill.created]", f.events.keys)
	}
}

func TestBillCreateRecomputesItemAmounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ada := f.user(t, "ada")

	room, err := f.rooms.Create(ctx, ada.ID, "Groceries")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	bill, err := f.bills.Create(ctx, ada.ID, room.ID, "", []ItemInput{
		{Description: "Wine", Quantity: 2, UnitPrice: 10.00, Amount: 5.00, SharedBy: []int64{ada.ID}},
		{Description: "Bread", Quantity: 1, UnitPrice: 3.00, Amount: 2.95, SharedBy: []int64{ada.ID}},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// A stated amount on a non-final line is ignored and recomputed
	// from quantity and unit price.
	if bill.Items[0].Amount.Cents != 2000 {
		t.Errorf("item[0] amount = %d, want 2000", bill.Items[0].Amount.Cents)
	}
	// The final line keeps its stated amount.
	if bill.Items[1].Amount.Cents != 295 {
		t.Errorf("item[1] amount = %d, want 295", bill.Items[1].Amount.Cents)
	}
	if bill.Total.Cents != 2295 {
		t.Errorf("bill total = %d, want 2295", bill.Total.Cents)
	}
}

func TestParseReceipt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	text := "CAFE LUNA\n2 x Espresso 2,40\nTotal 2,40\n"
	parsed, err := f.bills.Parse(ctx, []byte(text))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(parsed.Items) != 1 || parsed.Items[0].Quantity != 2 || parsed.Items[0].Total != 2.40 {
		t.Errorf("Parse() items = %+v", parsed.Items)
	}
	if parsed.TotalAmount != 2.40 {
		t.Errorf("Parse() total = %v, want 2.40", parsed.TotalAmount)
	}

	if _, err := f.bills.Parse(ctx, []byte("   \n")); !errors.Is(err, ErrNoReceiptText) {
		t.Errorf("Parse(blank) error = %v, want ErrNoReceiptText", err)
	}
}

func TestBillCreateRejectsNonMemberSharer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ada := f.user(t, "ada")
	eve := f.user(t, "eve")

	room, err := f.rooms.Create(ctx, ada.ID, "Flat")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	_, err = f.bills.Create(ctx, ada.ID, room.ID, "", []ItemInput{
		{Description: "Rent", Quantity: 1, UnitPrice: 800, SharedBy: []int64{eve.ID}},
	})
	if err == nil {
		t.Fatal("Create() with non-member sharer should fail")
	}
}

func TestBillDeleteOnlyUploader(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ada := f.user(t, "ada")
	bob := f.user(t, "bob")

	room, err := f.rooms.Create(ctx, ada.ID, "Trip")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := f.rooms.Join(ctx, bob.ID, room.Secret); err != nil {
		t.Fatalf("Join() error = %v", err)
	}

	bill, err := f.bills.Create(ctx, ada.ID, room.ID, "", []ItemInput{
		{Description: "Fuel", Quantity: 1, UnitPrice: 60, SharedBy: []int64{ada.ID, bob.ID}},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := f.bills.Delete(ctx, bob.ID, bill.ID); !errors.Is(err, ErrNotUploader) {
		t.Errorf("Delete(non-uploader) error = %v, want ErrNotUploader", err)
	}
	if err := f.bills.Delete(ctx, ada.ID, bill.ID); err != nil {
		t.Errorf("Delete(uploader) error = %v", err)
	}
	if _, err := f.bills.Get(ctx, ada.ID, bill.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Get(deleted) error = %v, want ErrNotFound", err)
	}
}

func TestSummaryCachedUntilWrite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ada := f.user(t, "ada")
	bob := f.user(t, "bob")

	room, err := f.rooms.Create(ctx, ada.ID, "Dinner")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := f.rooms.Join(ctx, bob.ID, room.Secret); err != nil {
		t.Fatalf("Join() error = %v", err)
	}

	if _, err := f.bills.Create(ctx, ada.ID, room.ID, "", []ItemInput{
		{Description: "Dinner", Quantity: 1, UnitPrice: 9.00, SharedBy: []int64{ada.ID, bob.ID}},
	}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	first, err := f.rooms.Summary(ctx, ada.ID, room.ID)
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if first.TotalExpenses != 900 {
		t.Errorf("TotalExpenses = %d, want 900", first.TotalExpenses)
	}
	if len(first.Transactions) != 1 || first.Transactions[0].Amount != 450 {
		t.Errorf("transactions = %+v, want bob pays ada 450", first.Transactions)
	}

	// Cached: same pointer back on the second read.
	second, err := f.rooms.Summary(ctx, ada.ID, room.ID)
	if err != nil {
		t.Fatalf("Summary() second call error = %v", err)
	}
	if second != first {
		t.Error("expected the cached summary on the second read")
	}

	// A new bill invalidates the cache.
	if _, err := f.bills.Create(ctx, bob.ID, room.ID, "", []ItemInput{
		{Description: "Taxi", Quantity: 1, UnitPrice: 3.00, SharedBy: []int64{ada.ID, bob.ID}},
	}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	third, err := f.rooms.Summary(ctx, ada.ID, room.ID)
	if err != nil {
		t.Fatalf("Summary() third call error = %v", err)
	}
	if third == first {
		t.Error("expected a recomputed summary after a write")
	}
	if third.TotalExpenses != 1200 {
		t.Errorf("TotalExpenses after second bill = %d, want 1200", third.TotalExpenses)
	}
}

func TestUploadAndParsedReceipt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ada := f.user(t, "ada")

	room, err := f.rooms.Create(ctx, ada.ID, "Lunch")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	key, err := f.bills.UploadReceipt(ctx, ada.ID, room.ID, []byte("Pizza 8.00\n"), "txt")
	if err != nil {
		t.Fatalf("UploadReceipt() error = %v", err)
	}
	if key == "" {
		t.Fatal("UploadReceipt() returned empty key")
	}
	if len(f.events.keys) != 1 || f.events.keys[0] != "receipt_parse" {
		t.Errorf("published keys = %v, want [receipt_parse]", f.events.keys)
	}

	// Worker has not run yet.
	if _, err := f.bills.ParsedReceipt(ctx, key); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("ParsedReceipt(pending) error = %v, want ErrNotFound", err)
	}

	if err := f.store.SaveParsedReceipt(ctx, key, []byte(`{"items":[{"description":"Pizza","quantity":1,"unit_price":8,"total":8}],"total_amount":8}`)); err != nil {
		t.Fatalf("SaveParsedReceipt() error = %v", err)
	}
	parsed, err := f.bills.ParsedReceipt(ctx, key)
	if err != nil {
		t.Fatalf("ParsedReceipt() error = %v", err)
	}
	if len(parsed.Items) != 1 || parsed.Items[0].Description != "Pizza" {
		t.Errorf("ParsedReceipt() = %+v", parsed)
	}

	// Non-members cannot upload.
	eve := f.user(t, "eve")
	if _, err := f.bills.UploadReceipt(ctx, eve.ID, room.ID, []byte("x"), "txt"); !errors.Is(err, ErrForbidden) {
		t.Errorf("UploadReceipt(non-member) error = %v, want ErrForbidden", err)
	}
}
