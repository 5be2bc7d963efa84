package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"splitperfect/internal/core"
)

// openStores builds one store per backend so every test runs against
// both implementations.
func openStores(t *testing.T) map[string]Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	sqliteStore, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { sqliteStore.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqliteStore,
	}
}

func mustUser(t *testing.T, s Store, googleID, email, name string) *core.User {
	t.Helper()
	u, err := s.UpsertGoogleUser(context.Background(), googleID, email, name, "")
	if err != nil {
		t.Fatalf("UpsertGoogleUser(%s) error = %v", email, err)
	}
	return u
}

func TestUpsertGoogleUser(t *testing.T) {
	for backend, store := range openStores(t) {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()

			created := mustUser(t, store, "g-1", "ada@example.com", "Ada")
			if created.ID == 0 {
				t.Fatal("expected assigned user id")
			}

			updated, err := store.UpsertGoogleUser(ctx, "g-1", "ada@example.com", "Ada L.", "https://avatar")
			if err != nil {
				t.Fatalf("UpsertGoogleUser() second call error = %v", err)
			}
			if updated.ID != created.ID {
				t.Errorf("upsert created new user: id %d, want %d", updated.ID, created.ID)
			}
			if updated.Name != "Ada L." || updated.Avatar != "https://avatar" {
				t.Errorf("upsert did not refresh profile: %+v", updated)
			}

			got, err := store.GetUser(ctx, created.ID)
			if err != nil {
				t.Fatalf("GetUser() error = %v", err)
			}
			if got.Email != "ada@example.com" {
				t.Errorf("GetUser() email = %q", got.Email)
			}

			if _, err := store.GetUser(ctx, 9999); !errors.Is(err, ErrNotFound) {
				t.Errorf("GetUser(missing) error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestRoomLifecycle(t *testing.T) {
	for backend, store := range openStores(t) {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()
			ada := mustUser(t, store, "g-1", "ada@example.com", "Ada")
			bob := mustUser(t, store, "g-2", "bob@example.com", "Bob")

			room := &core.Room{Name: "Ski Trip", Secret: core.NewRoomSecret(), CreatedBy: ada.ID}
			if err := store.CreateRoom(ctx, room); err != nil {
				t.Fatalf("CreateRoom() error = %v", err)
			}
			if room.ID == 0 {
				t.Fatal("expected assigned room id")
			}

			// The creator is enrolled atomically.
			member, err := store.IsMember(ctx, room.ID, ada.ID)
			if err != nil || !member {
				t.Fatalf("IsMember(creator) = %v, %v, want true", member, err)
			}

			bySecret, err := store.GetRoomBySecret(ctx, room.Secret)
			if err != nil {
				t.Fatalf("GetRoomBySecret() error = %v", err)
			}
			if bySecret.ID != room.ID {
				t.Errorf("GetRoomBySecret() id = %d, want %d", bySecret.ID, room.ID)
			}

			if err := store.AddMember(ctx, room.ID, bob.ID); err != nil {
				t.Fatalf("AddMember() error = %v", err)
			}
			if err := store.AddMember(ctx, room.ID, bob.ID); !errors.Is(err, ErrAlreadyMember) {
				t.Errorf("AddMember(duplicate) error = %v, want ErrAlreadyMember", err)
			}

			members, err := store.ListMembers(ctx, room.ID)
			if err != nil {
				t.Fatalf("ListMembers() error = %v", err)
			}
			if len(members) != 2 || members[0].ID != ada.ID || members[1].ID != bob.ID {
				t.Errorf("ListMembers() = %+v, want [ada bob] ascending", members)
			}

			rooms, err := store.ListRoomsForUser(ctx, bob.ID)
			if err != nil {
				t.Fatalf("ListRoomsForUser() error = %v", err)
			}
			if len(rooms) != 1 || rooms[0].MemberCount != 2 {
				t.Errorf("ListRoomsForUser() = %+v, want one room with 2 members", rooms)
			}

			if err := store.DeleteRoom(ctx, room.ID); err != nil {
				t.Fatalf("DeleteRoom() error = %v", err)
			}
			if _, err := store.GetRoom(ctx, room.ID); !errors.Is(err, ErrNotFound) {
				t.Errorf("GetRoom(deleted) error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestBillRoundTrip(t *testing.T) {
	for backend, store := range openStores(t) {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()
			ada := mustUser(t, store, "g-1", "ada@example.com", "Ada")
			bob := mustUser(t, store, "g-2", "bob@example.com", "Bob")

			room := &core.Room{Name: "Flat 12", Secret: core.NewRoomSecret(), CreatedBy: ada.ID}
			if err := store.CreateRoom(ctx, room); err != nil {
				t.Fatalf("CreateRoom() error = %v", err)
			}
			if err := store.AddMember(ctx, room.ID, bob.ID); err != nil {
				t.Fatalf("AddMember() error = %v", err)
			}

			bill := &core.Bill{
				RoomID:     room.ID,
				UploadedBy: ada.ID,
				Total:      core.Money{Cents: 1500},
				Items: []core.Item{
					{
						Description: "Pizza",
						Quantity:    2,
						UnitPrice:   core.Money{Cents: 500},
						Amount:      core.Money{Cents: 1000},
						SharedBy:    []int64{ada.ID, bob.ID},
					},
					{
						Description: "Beer",
						Quantity:    1,
						UnitPrice:   core.Money{Cents: 500},
						Amount:      core.Money{Cents: 500},
						SharedBy:    []int64{bob.ID},
					},
				},
			}
			if err := store.CreateBill(ctx, bill); err != nil {
				t.Fatalf("CreateBill() error = %v", err)
			}

			got, err := store.GetBill(ctx, bill.ID)
			if err != nil {
				t.Fatalf("GetBill() error = %v", err)
			}
			if got.Total.Cents != 1500 || len(got.Items) != 2 {
				t.Fatalf("GetBill() = %+v, want 2 items totalling 1500", got)
			}
			if len(got.Items[0].SharedBy) != 2 || len(got.Items[1].SharedBy) != 1 {
				t.Errorf("item shares not persisted: %+v", got.Items)
			}

			snap, err := store.RoomSnapshot(ctx, room.ID)
			if err != nil {
				t.Fatalf("RoomSnapshot() error = %v", err)
			}
			if snap.Room.ID != room.ID || len(snap.Members) != 2 || len(snap.Bills) != 1 {
				t.Errorf("RoomSnapshot() = %+v, want room with 2 members and 1 bill", snap)
			}

			if err := store.DeleteBill(ctx, bill.ID); err != nil {
				t.Fatalf("DeleteBill() error = %v", err)
			}
			if _, err := store.GetBill(ctx, bill.ID); !errors.Is(err, ErrNotFound) {
				t.Errorf("GetBill(deleted) error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestParsedReceiptRoundTrip(t *testing.T) {
	for backend, store := range openStores(t) {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()
			payload := []byte(`{"items":[]}`)

			if _, err := store.GetParsedReceipt(ctx, "missing"); !errors.Is(err, ErrNotFound) {
				t.Errorf("GetParsedReceipt(missing) error = %v, want ErrNotFound", err)
			}
			if err := store.SaveParsedReceipt(ctx, "key-1", payload); err != nil {
				t.Fatalf("SaveParsedReceipt() error = %v", err)
			}
			got, err := store.GetParsedReceipt(ctx, "key-1")
			if err != nil {
				t.Fatalf("GetParsedReceipt() error = %v", err)
			}
			if string(got) != string(payload) {
				t.Errorf("GetParsedReceipt() = %s, want %s", got, payload)
			}
		})
	}
}
