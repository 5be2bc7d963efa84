package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"splitperfect/internal/core"
	"splitperfect/internal/engine"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-memory Store used by tests and the zero-config
// development backend.
type MemoryStore struct {
	mu sync.Mutex

	nextUserID int64
	nextRoomID int64
	nextBillID int64
	nextItemID int64

	users       map[int64]core.User
	rooms       map[int64]core.Room
	memberships map[int64][]core.Membership // room id -> memberships
	bills       map[int64]core.Bill
	receipts    map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:       make(map[int64]core.User),
		rooms:       make(map[int64]core.Room),
		memberships: make(map[int64][]core.Membership),
		bills:       make(map[int64]core.Bill),
		receipts:    make(map[string][]byte),
	}
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) UpsertGoogleUser(_ context.Context, googleID, email, name, avatar string) (*core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, u := range s.users {
		if u.GoogleID == googleID {
			u.Name = name
			u.Avatar = avatar
			s.users[id] = u
			out := u
			return &out, nil
		}
	}

	s.nextUserID++
	u := core.User{
		ID:        s.nextUserID,
		Name:      name,
		Email:     email,
		Avatar:    avatar,
		GoogleID:  googleID,
		CreatedAt: time.Now(),
	}
	s.users[u.ID] = u
	out := u
	return &out, nil
}

func (s *MemoryStore) GetUser(_ context.Context, id int64) (*core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	out := u
	return &out, nil
}

func (s *MemoryStore) CreateRoom(_ context.Context, room *core.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextRoomID++
	room.ID = s.nextRoomID
	if room.CreatedAt.IsZero() {
		room.CreatedAt = time.Now()
	}
	s.rooms[room.ID] = *room
	s.memberships[room.ID] = append(s.memberships[room.ID], core.Membership{
		UserID:   room.CreatedBy,
		RoomID:   room.ID,
		JoinedAt: room.CreatedAt,
	})
	return nil
}

func (s *MemoryStore) GetRoom(_ context.Context, id int64) (*core.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[id]
	if !ok {
		return nil, fmt.Errorf("room %d: %w", id, ErrNotFound)
	}
	out := room
	return &out, nil
}

func (s *MemoryStore) GetRoomBySecret(_ context.Context, secret string) (*core.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, room := range s.rooms {
		if room.Secret == secret {
			out := room
			return &out, nil
		}
	}
	return nil, fmt.Errorf("room by secret: %w", ErrNotFound)
}

func (s *MemoryStore) ListRoomsForUser(_ context.Context, userID int64) ([]RoomInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []RoomInfo
	for roomID, members := range s.memberships {
		for _, m := range members {
			if m.UserID == userID {
				out = append(out, RoomInfo{Room: s.rooms[roomID], MemberCount: len(members)})
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *MemoryStore) DeleteRoom(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[id]; !ok {
		return fmt.Errorf("room %d: %w", id, ErrNotFound)
	}
	delete(s.rooms, id)
	delete(s.memberships, id)
	for billID, bill := range s.bills {
		if bill.RoomID == id {
			delete(s.bills, billID)
		}
	}
	return nil
}

func (s *MemoryStore) AddMember(_ context.Context, roomID, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.memberships[roomID] {
		if m.UserID == userID {
			return ErrAlreadyMember
		}
	}
	s.memberships[roomID] = append(s.memberships[roomID], core.Membership{
		UserID:   userID,
		RoomID:   roomID,
		JoinedAt: time.Now(),
	})
	return nil
}

func (s *MemoryStore) IsMember(_ context.Context, roomID, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isMemberLocked(roomID, userID), nil
}

func (s *MemoryStore) isMemberLocked(roomID, userID int64) bool {
	for _, m := range s.memberships[roomID] {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

func (s *MemoryStore) ListMembers(_ context.Context, roomID int64) ([]core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listMembersLocked(roomID), nil
}

func (s *MemoryStore) listMembersLocked(roomID int64) []core.User {
	var members []core.User
	for _, m := range s.memberships[roomID] {
		if u, ok := s.users[m.UserID]; ok {
			members = append(members, u)
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })
	return members
}

func (s *MemoryStore) MemberCount(_ context.Context, roomID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.memberships[roomID]), nil
}

func (s *MemoryStore) CreateBill(_ context.Context, bill *core.Bill) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextBillID++
	bill.ID = s.nextBillID
	if bill.CreatedAt.IsZero() {
		bill.CreatedAt = time.Now()
	}
	for i := range bill.Items {
		s.nextItemID++
		bill.Items[i].ID = s.nextItemID
		bill.Items[i].BillID = bill.ID
		if bill.Items[i].CreatedAt.IsZero() {
			bill.Items[i].CreatedAt = bill.CreatedAt
		}
	}
	s.bills[bill.ID] = cloneBill(*bill)
	return nil
}

func (s *MemoryStore) GetBill(_ context.Context, id int64) (*core.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bill, ok := s.bills[id]
	if !ok {
		return nil, fmt.Errorf("bill %d: %w", id, ErrNotFound)
	}
	out := cloneBill(bill)
	return &out, nil
}

func (s *MemoryStore) ListRoomBills(_ context.Context, roomID int64) ([]core.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listRoomBillsLocked(roomID), nil
}

func (s *MemoryStore) listRoomBillsLocked(roomID int64) []core.Bill {
	var bills []core.Bill
	for _, bill := range s.bills {
		if bill.RoomID == roomID {
			bills = append(bills, cloneBill(bill))
		}
	}
	// Newest first, matching the SQLite ordering.
	sort.Slice(bills, func(i, j int) bool { return bills[i].ID > bills[j].ID })
	return bills
}

func (s *MemoryStore) DeleteBill(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bills[id]; !ok {
		return fmt.Errorf("bill %d: %w", id, ErrNotFound)
	}
	delete(s.bills, id)
	return nil
}

func (s *MemoryStore) RoomSnapshot(_ context.Context, roomID int64) (engine.Input, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomID]
	if !ok {
		return engine.Input{}, fmt.Errorf("room %d: %w", roomID, ErrNotFound)
	}
	return engine.Input{
		Room:    room,
		Members: s.listMembersLocked(roomID),
		Bills:   s.listRoomBillsLocked(roomID),
	}, nil
}

func (s *MemoryStore) SaveParsedReceipt(_ context.Context, imageKey string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receipts[imageKey] = append([]byte(nil), payload...)
	return nil
}

func (s *MemoryStore) GetParsedReceipt(_ context.Context, imageKey string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload, ok := s.receipts[imageKey]
	if !ok {
		return nil, fmt.Errorf("parsed receipt %q: %w", imageKey, ErrNotFound)
	}
	return append([]byte(nil), payload...), nil
}

func cloneBill(b core.Bill) core.Bill {
	items := make([]core.Item, len(b.Items))
	for i, it := range b.Items {
		it.SharedBy = append([]int64(nil), it.SharedBy...)
		items[i] = it
	}
	b.Items = items
	return b
}
