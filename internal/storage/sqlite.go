package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure Go SQLite driver, no CGO

	"splitperfect/internal/core"
	"splitperfect/internal/engine"
)

var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store on a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at dbPath and
// runs pending migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertGoogleUser(ctx context.Context, googleID, email, name, avatar string) (*core.User, error) {
	now := time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (name, email, avatar, google_id, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(google_id) DO UPDATE SET name = excluded.name, avatar = excluded.avatar`,
		name, email, avatar, googleID, now.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}

	user := &core.User{}
	var createdAt int64
	err = s.db.QueryRowContext(ctx,
		"SELECT id, name, email, avatar, google_id, created_at FROM users WHERE google_id = ?",
		googleID,
	).Scan(&user.ID, &user.Name, &user.Email, &user.Avatar, &user.GoogleID, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("load upserted user: %w", err)
	}
	user.CreatedAt = time.Unix(createdAt, 0)
	return user, nil
}

func (s *SQLiteStore) GetUser(ctx context.Context, id int64) (*core.User, error) {
	user := &core.User{}
	var createdAt int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, email, avatar, google_id, created_at FROM users WHERE id = ?",
		id,
	).Scan(&user.ID, &user.Name, &user.Email, &user.Avatar, &user.GoogleID, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	user.CreatedAt = time.Unix(createdAt, 0)
	return user, nil
}

func (s *SQLiteStore) CreateRoom(ctx context.Context, room *core.Room) error {
	if room.CreatedAt.IsZero() {
		room.CreatedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO rooms (name, secret, created_by, created_at) VALUES (?, ?, ?, ?)",
		room.Name, room.Secret, room.CreatedBy, room.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert room: %w", err)
	}
	room.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("room id: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO memberships (user_id, room_id, joined_at) VALUES (?, ?, ?)",
		room.CreatedBy, room.ID, room.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert creator membership: %w", err)
	}

	return tx.Commit()
}

func (s *SQLiteStore) scanRoom(row *sql.Row) (*core.Room, error) {
	room := &core.Room{}
	var createdAt int64
	err := row.Scan(&room.ID, &room.Name, &room.Secret, &room.CreatedBy, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	room.CreatedAt = time.Unix(createdAt, 0)
	return room, nil
}

func (s *SQLiteStore) GetRoom(ctx context.Context, id int64) (*core.Room, error) {
	room, err := s.scanRoom(s.db.QueryRowContext(ctx,
		"SELECT id, name, secret, created_by, created_at FROM rooms WHERE id = ?", id))
	if err != nil {
		return nil, fmt.Errorf("get room %d: %w", id, err)
	}
	return room, nil
}

func (s *SQLiteStore) GetRoomBySecret(ctx context.Context, secret string) (*core.Room, error) {
	room, err := s.scanRoom(s.db.QueryRowContext(ctx,
		"SELECT id, name, secret, created_by, created_at FROM rooms WHERE secret = ?", secret))
	if err != nil {
		return nil, fmt.Errorf("get room by secret: %w", err)
	}
	return room, nil
}

func (s *SQLiteStore) ListRoomsForUser(ctx context.Context, userID int64) ([]RoomInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.name, r.secret, r.created_by, r.created_at,
		       (SELECT COUNT(*) FROM memberships mc WHERE mc.room_id = r.id)
		FROM rooms r
		JOIN memberships m ON m.room_id = r.id
		WHERE m.user_id = ?
		ORDER BY r.created_at DESC, r.id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	var out []RoomInfo
	for rows.Next() {
		var info RoomInfo
		var createdAt int64
		if err := rows.Scan(&info.ID, &info.Name, &info.Secret, &info.CreatedBy, &createdAt, &info.MemberCount); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		info.CreatedAt = time.Unix(createdAt, 0)
		out = append(out, info)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteRoom(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM rooms WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("room %d: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) AddMember(ctx context.Context, roomID, userID int64) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO memberships (user_id, room_id, joined_at) VALUES (?, ?, ?)",
		userID, roomID, time.Now().Unix(),
	)
	if err != nil {
		// The composite primary key rejects duplicate joins.
		exists, checkErr := s.IsMember(ctx, roomID, userID)
		if checkErr == nil && exists {
			return ErrAlreadyMember
		}
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

func (s *SQLiteStore) IsMember(ctx context.Context, roomID, userID int64) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM memberships WHERE room_id = ? AND user_id = ?",
		roomID, userID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) ListMembers(ctx context.Context, roomID int64) ([]core.User, error) {
	return listMembersTx(ctx, s.db, roomID)
}

// querier lets the member listing run on the pool or inside a snapshot
// transaction.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func listMembersTx(ctx context.Context, q querier, roomID int64) ([]core.User, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT u.id, u.name, u.email, u.avatar, u.google_id, u.created_at
		FROM users u
		JOIN memberships m ON m.user_id = u.id
		WHERE m.room_id = ?
		ORDER BY u.id`,
		roomID,
	)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []core.User
	for rows.Next() {
		var u core.User
		var createdAt int64
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Avatar, &u.GoogleID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		u.CreatedAt = time.Unix(createdAt, 0)
		members = append(members, u)
	}
	return members, rows.Err()
}

func (s *SQLiteStore) MemberCount(ctx context.Context, roomID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM memberships WHERE room_id = ?", roomID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("member count: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) CreateBill(ctx context.Context, bill *core.Bill) error {
	if bill.CreatedAt.IsZero() {
		bill.CreatedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO bills (room_id, uploaded_by, image_url, total_cents, created_at) VALUES (?, ?, ?, ?, ?)",
		bill.RoomID, bill.UploadedBy, bill.ImageURL, bill.Total.Cents, bill.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert bill: %w", err)
	}
	bill.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("bill id: %w", err)
	}

	for i := range bill.Items {
		item := &bill.Items[i]
		item.BillID = bill.ID
		if item.CreatedAt.IsZero() {
			item.CreatedAt = bill.CreatedAt
		}

		res, err := tx.ExecContext(ctx,
			"INSERT INTO bill_items (bill_id, description, quantity, unit_price_cents, amount_cents, created_at) VALUES (?, ?, ?, ?, ?, ?)",
			item.BillID, item.Description, item.Quantity, item.UnitPrice.Cents, item.Amount.Cents, item.CreatedAt.Unix(),
		)
		if err != nil {
			return fmt.Errorf("insert item: %w", err)
		}
		item.ID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("item id: %w", err)
		}

		for _, userID := range item.SharedBy {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO item_shares (item_id, user_id) VALUES (?, ?)",
				item.ID, userID,
			); err != nil {
				return fmt.Errorf("insert item share: %w", err)
			}
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) GetBill(ctx context.Context, id int64) (*core.Bill, error) {
	bill := &core.Bill{}
	var createdAt int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id, room_id, uploaded_by, image_url, total_cents, created_at FROM bills WHERE id = ?",
		id,
	).Scan(&bill.ID, &bill.RoomID, &bill.UploadedBy, &bill.ImageURL, &bill.Total.Cents, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("bill %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get bill: %w", err)
	}
	bill.CreatedAt = time.Unix(createdAt, 0)

	items, err := loadItems(ctx, s.db, []int64{bill.ID})
	if err != nil {
		return nil, err
	}
	bill.Items = items[bill.ID]
	return bill, nil
}

func (s *SQLiteStore) ListRoomBills(ctx context.Context, roomID int64) ([]core.Bill, error) {
	return listRoomBillsTx(ctx, s.db, roomID)
}

func listRoomBillsTx(ctx context.Context, q querier, roomID int64) ([]core.Bill, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT id, room_id, uploaded_by, image_url, total_cents, created_at FROM bills WHERE room_id = ? ORDER BY created_at DESC, id DESC",
		roomID,
	)
	if err != nil {
		return nil, fmt.Errorf("list bills: %w", err)
	}
	defer rows.Close()

	var bills []core.Bill
	var ids []int64
	for rows.Next() {
		var b core.Bill
		var createdAt int64
		if err := rows.Scan(&b.ID, &b.RoomID, &b.UploadedBy, &b.ImageURL, &b.Total.Cents, &createdAt); err != nil {
			return nil, fmt.Errorf("scan bill: %w", err)
		}
		b.CreatedAt = time.Unix(createdAt, 0)
		bills = append(bills, b)
		ids = append(ids, b.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	items, err := loadItems(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	for i := range bills {
		bills[i].Items = items[bills[i].ID]
	}
	return bills, nil
}

// loadItems fetches items and sharer sets for the given bills in two
// queries rather than one per item.
func loadItems(ctx context.Context, q querier, billIDs []int64) (map[int64][]core.Item, error) {
	out := make(map[int64][]core.Item)
	if len(billIDs) == 0 {
		return out, nil
	}

	placeholders, args := inClause(billIDs)

	rows, err := q.QueryContext(ctx,
		"SELECT id, bill_id, description, quantity, unit_price_cents, amount_cents, created_at FROM bill_items WHERE bill_id IN ("+placeholders+") ORDER BY id",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	defer rows.Close()

	var flat []core.Item
	var itemIDs []int64
	for rows.Next() {
		var it core.Item
		var createdAt int64
		if err := rows.Scan(&it.ID, &it.BillID, &it.Description, &it.Quantity, &it.UnitPrice.Cents, &it.Amount.Cents, &createdAt); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		it.CreatedAt = time.Unix(createdAt, 0)
		flat = append(flat, it)
		itemIDs = append(itemIDs, it.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(itemIDs) == 0 {
		return out, nil
	}

	placeholders, args = inClause(itemIDs)
	shareRows, err := q.QueryContext(ctx,
		"SELECT item_id, user_id FROM item_shares WHERE item_id IN ("+placeholders+") ORDER BY item_id, user_id",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("load item shares: %w", err)
	}
	defer shareRows.Close()

	shares := make(map[int64][]int64)
	for shareRows.Next() {
		var itemID, userID int64
		if err := shareRows.Scan(&itemID, &userID); err != nil {
			return nil, fmt.Errorf("scan item share: %w", err)
		}
		shares[itemID] = append(shares[itemID], userID)
	}
	if err := shareRows.Err(); err != nil {
		return nil, err
	}

	for i := range flat {
		flat[i].SharedBy = shares[flat[i].ID]
		out[flat[i].BillID] = append(out[flat[i].BillID], flat[i])
	}
	return out, nil
}

func inClause(ids []int64) (string, []any) {
	placeholders := ""
	args := make([]any, len(ids))
	for i, id := range ids {
		if i > 0 {
			placeholders += ","
		}
		placeholders += "?"
		args[i] = id
	}
	return placeholders, args
}

func (s *SQLiteStore) DeleteBill(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM bills WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete bill: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("bill %d: %w", id, ErrNotFound)
	}
	return nil
}

// RoomSnapshot reads room, members and bills inside one transaction so
// the settlement engine never observes a half-written bill.
func (s *SQLiteStore) RoomSnapshot(ctx context.Context, roomID int64) (engine.Input, error) {
	var in engine.Input

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return in, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	room := &core.Room{}
	var createdAt int64
	err = tx.QueryRowContext(ctx,
		"SELECT id, name, secret, created_by, created_at FROM rooms WHERE id = ?", roomID,
	).Scan(&room.ID, &room.Name, &room.Secret, &room.CreatedBy, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return in, fmt.Errorf("room %d: %w", roomID, ErrNotFound)
	}
	if err != nil {
		return in, fmt.Errorf("snapshot room: %w", err)
	}
	room.CreatedAt = time.Unix(createdAt, 0)
	in.Room = *room

	if in.Members, err = listMembersTx(ctx, tx, roomID); err != nil {
		return in, err
	}
	if in.Bills, err = listRoomBillsTx(ctx, tx, roomID); err != nil {
		return in, err
	}

	return in, tx.Commit()
}

func (s *SQLiteStore) SaveParsedReceipt(ctx context.Context, imageKey string, payload []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO parsed_receipts (image_key, payload, created_at) VALUES (?, ?, ?)
		ON CONFLICT(image_key) DO UPDATE SET payload = excluded.payload`,
		imageKey, payload, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("save parsed receipt: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetParsedReceipt(ctx context.Context, imageKey string) ([]byte, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT payload FROM parsed_receipts WHERE image_key = ?", imageKey,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("parsed receipt %q: %w", imageKey, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get parsed receipt: %w", err)
	}
	return payload, nil
}
