package http

import (
	"time"

	"splitperfect/internal/core"
	"splitperfect/internal/engine"
	"splitperfect/internal/storage"
)

// Request payloads.

type googleAuthRequest struct {
	Token string `json:"token"`
}

type roomCreateRequest struct {
	Name string `json:"name"`
}

type roomJoinRequest struct {
	Secret string `json:"secret"`
}

type billItemPayload struct {
	Description string  `json:"description"`
	Quantity    int64   `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Amount      float64 `json:"amount"`
	SharedBy    []int64 `json:"shared_by"`
}

type billCreateRequest struct {
	RoomID   int64             `json:"room_id"`
	ImageURL string            `json:"image_url"`
	Items    []billItemPayload `json:"items"`
}

// Response payloads. Monetary amounts are decimals, computed from the
// stored cents at this boundary only.

type userResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Avatar    string    `json:"avatar,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type tokenResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	User        userResponse `json:"user"`
}

type roomResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Secret      string    `json:"secret"`
	CreatedBy   int64     `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	MemberCount int       `json:"member_count"`
}

type roomWithMembersResponse struct {
	roomResponse
	Members []userResponse `json:"members"`
}

type billItemResponse struct {
	ID          int64     `json:"id"`
	BillID      int64     `json:"bill_id"`
	Description string    `json:"description"`
	Quantity    int64     `json:"quantity"`
	UnitPrice   float64   `json:"unit_price"`
	Amount      float64   `json:"amount"`
	SharedBy    []int64   `json:"shared_by"`
	CreatedAt   time.Time `json:"created_at"`
}

type billResponse struct {
	ID          int64              `json:"id"`
	RoomID      int64              `json:"room_id"`
	UploadedBy  int64              `json:"uploaded_by"`
	ImageURL    string             `json:"image_url"`
	TotalAmount float64            `json:"total_amount"`
	CreatedAt   time.Time          `json:"created_at"`
	Items       []billItemResponse `json:"items"`
}

type uploadResponse struct {
	ImageKey string `json:"image_key"`
	Message  string `json:"message"`
}

type userBalanceResponse struct {
	UserID     int64   `json:"user_id"`
	UserName   string  `json:"user_name"`
	TotalPaid  float64 `json:"total_paid"`
	TotalOwed  float64 `json:"total_owed"`
	NetBalance float64 `json:"net_balance"`
}

type debtTransactionResponse struct {
	FromUserID   int64   `json:"from_user_id"`
	FromUserName string  `json:"from_user_name"`
	ToUserID     int64   `json:"to_user_id"`
	ToUserName   string  `json:"to_user_name"`
	Amount       float64 `json:"amount"`
}

type roomSummaryResponse struct {
	RoomID        int64                     `json:"room_id"`
	RoomName      string                    `json:"room_name"`
	TotalExpenses float64                   `json:"total_expenses"`
	Transactions  []debtTransactionResponse `json:"transactions"`
	Balances      []userBalanceResponse     `json:"balances"`
}

func storageRoomInfo(room *core.Room, memberCount int) storage.RoomInfo {
	return storage.RoomInfo{Room: *room, MemberCount: memberCount}
}

func toUserResponse(u core.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Avatar:    u.Avatar,
		CreatedAt: u.CreatedAt,
	}
}

func toRoomResponse(info storage.RoomInfo) roomResponse {
	return roomResponse{
		ID:          info.ID,
		Name:        info.Name,
		Secret:      info.Secret,
		CreatedBy:   info.CreatedBy,
		CreatedAt:   info.CreatedAt,
		MemberCount: info.MemberCount,
	}
}

func toBillResponse(b core.Bill) billResponse {
	out := billResponse{
		ID:          b.ID,
		RoomID:      b.RoomID,
		UploadedBy:  b.UploadedBy,
		ImageURL:    b.ImageURL,
		TotalAmount: b.Total.Decimal(),
		CreatedAt:   b.CreatedAt,
		Items:       make([]billItemResponse, len(b.Items)),
	}
	for i, item := range b.Items {
		out.Items[i] = billItemResponse{
			ID:          item.ID,
			BillID:      item.BillID,
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice.Decimal(),
			Amount:      item.Amount.Decimal(),
			SharedBy:    item.SharedBy,
			CreatedAt:   item.CreatedAt,
		}
	}
	return out
}

func toSummaryResponse(s *engine.Summary) roomSummaryResponse {
	out := roomSummaryResponse{
		RoomID:        s.RoomID,
		RoomName:      s.RoomName,
		TotalExpenses: core.Money{Cents: s.TotalExpenses}.Decimal(),
		Transactions:  make([]debtTransactionResponse, len(s.Transactions)),
		Balances:      make([]userBalanceResponse, len(s.Balances)),
	}
	for i, t := range s.Transactions {
		out.Transactions[i] = debtTransactionResponse{
			FromUserID:   t.FromUserID,
			FromUserName: t.FromUserName,
			ToUserID:     t.ToUserID,
			ToUserName:   t.ToUserName,
			Amount:       core.Money{Cents: t.Amount}.Decimal(),
		}
	}
	for i, b := range s.Balances {
		out.Balances[i] = userBalanceResponse{
			UserID:     b.UserID,
			UserName:   b.UserName,
			TotalPaid:  core.Money{Cents: b.Paid}.Decimal(),
			TotalOwed:  core.Money{Cents: b.Owed}.Decimal(),
			NetBalance: core.Money{Cents: b.Net}.Decimal(),
		}
	}
	return out
}
