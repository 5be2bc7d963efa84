package engine

import (
	"splitperfect/internal/core"
)

// Input is the room snapshot the engine consumes. The storage layer reads
// it inside one transaction so bills and membership are consistent.
type Input struct {
	Room    core.Room
	Members []core.User
	Bills   []core.Bill
}

// Balance is MemberBalance with the display name attached.
type Balance struct {
	UserID   int64
	UserName string
	Paid     int64
	Owed     int64
	Net      int64
}

// Transfer is Transaction with display names attached.
type Transfer struct {
	FromUserID   int64
	FromUserName string
	ToUserID     int64
	ToUserName   string
	Amount       int64
}

// Summary is the full settlement report for one room. Amounts are cents;
// the HTTP layer converts to decimals.
type Summary struct {
	RoomID        int64
	RoomName      string
	TotalExpenses int64
	Balances      []Balance
	Transactions  []Transfer
}

// BuildSummary runs the full pipeline: resolve item shares, aggregate
// balances, settle debts, attach names. It either returns a complete,
// balance-conserving summary or an error; there is no partial output.
func BuildSummary(in Input) (*Summary, error) {
	memberIDs := make([]int64, len(in.Members))
	names := make(map[int64]string, len(in.Members))
	for i, m := range in.Members {
		memberIDs[i] = m.ID
		names[m.ID] = m.Name
	}

	balances, err := AggregateBalances(memberIDs, in.Bills)
	if err != nil {
		return nil, err
	}

	transactions, err := Settle(balances)
	if err != nil {
		return nil, err
	}

	var total int64
	for _, b := range in.Bills {
		total += b.Total.Cents
	}

	summary := &Summary{
		RoomID:        in.Room.ID,
		RoomName:      in.Room.Name,
		TotalExpenses: total,
		Balances:      make([]Balance, len(balances)),
		Transactions:  make([]Transfer, len(transactions)),
	}
	for i, b := range balances {
		summary.Balances[i] = Balance{
			UserID:   b.UserID,
			UserName: displayName(names, b.UserID),
			Paid:     b.Paid,
			Owed:     b.Owed,
			Net:      b.Net,
		}
	}
	for i, t := range transactions {
		summary.Transactions[i] = Transfer{
			FromUserID:   t.FromUserID,
			FromUserName: displayName(names, t.FromUserID),
			ToUserID:     t.ToUserID,
			ToUserName:   displayName(names, t.ToUserID),
			Amount:       t.Amount,
		}
	}
	return summary, nil
}

func displayName(names map[int64]string, id int64) string {
	if name, ok := names[id]; ok {
		return name
	}
	return "Unknown"
}
