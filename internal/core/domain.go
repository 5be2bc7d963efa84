package core

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"
	"time"
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyName        = errors.New("empty name")
	ErrEmptyDescription = errors.New("empty description")
	ErrInvalidQuantity  = errors.New("invalid quantity")
	ErrNoSharers        = errors.New("item must be shared by at least one member")
)

type (
	// User is a registered account. Identity comes from Google OAuth; the
	// google_id is the stable external key.
	User struct {
		ID        int64
		Name      string
		Email     string
		Avatar    string
		GoogleID  string
		CreatedAt time.Time
	}

	// Room is a named group sharing expenses. The secret is the join code
	// handed out to prospective members.
	Room struct {
		ID        int64
		Name      string
		Secret    string
		CreatedBy int64
		CreatedAt time.Time
	}

	Membership struct {
		UserID   int64
		RoomID   int64
		JoinedAt time.Time
	}

	// Bill is one uploaded receipt. TotalAmount is the sum of its item
	// amounts, fixed at creation time.
	Bill struct {
		ID         int64
		RoomID     int64
		UploadedBy int64
		ImageURL   string
		Total      Money
		CreatedAt  time.Time
		Items      []Item
	}

	// Item is one line on a bill. SharedBy lists the room members that
	// split the amount; it is never empty on a stored item.
	Item struct {
		ID          int64
		BillID      int64
		Description string
		Quantity    int64
		UnitPrice   Money
		Amount      Money
		SharedBy    []int64
		CreatedAt   time.Time
	}
)

// NewRoomSecret returns a URL-safe random join code.
func NewRoomSecret() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic("core: crypto/rand unavailable: " + err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

func (u User) Validate() error {
	if strings.TrimSpace(u.Name) == "" {
		return ErrEmptyName
	}
	if strings.TrimSpace(u.Email) == "" {
		return errors.New("empty email")
	}
	if strings.TrimSpace(u.GoogleID) == "" {
		return errors.New("empty google id")
	}
	return nil
}

func (r Room) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrEmptyName
	}
	if len(r.Name) > 100 {
		return errors.New("room name too long (max 100 characters)")
	}
	return nil
}

// ComputedAmount is quantity × unit price in cents. Stored item amounts
// always equal this, except a bill's final line which may carry a stated
// amount to absorb receipt rounding.
func (i Item) ComputedAmount() Money {
	return Money{Cents: i.Quantity * i.UnitPrice.Cents}
}

func (i Item) Validate() error {
	if len(strings.TrimSpace(i.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(i.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if i.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	if err := i.UnitPrice.Validate(); err != nil {
		return err
	}
	if err := i.Amount.Validate(); err != nil {
		return err
	}
	if len(i.SharedBy) == 0 {
		return ErrNoSharers
	}
	seen := make(map[int64]struct{}, len(i.SharedBy))
	for _, id := range i.SharedBy {
		if _, dup := seen[id]; dup {
			return errors.New("duplicate sharer id")
		}
		seen[id] = struct{}{}
	}
	return nil
}

func (b Bill) Validate() error {
	if b.RoomID == 0 {
		return errors.New("bill must belong to a room")
	}
	if b.UploadedBy == 0 {
		return errors.New("bill must have an uploader")
	}
	if len(b.Items) == 0 {
		return errors.New("bill must have at least one item")
	}
	var sum int64
	for _, it := range b.Items {
		if err := it.Validate(); err != nil {
			return err
		}
		sum += it.Amount.Cents
	}
	if b.Total.Cents != sum {
		return errors.New("bill total does not match item amounts")
	}
	return nil
}
