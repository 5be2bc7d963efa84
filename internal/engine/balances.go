package engine

import (
	"fmt"
	"sort"

	"splitperfect/internal/core"
)

// MemberBalance is one member's aggregate position in a room, in cents.
// Net is Paid minus Owed: positive means the group owes them.
type MemberBalance struct {
	UserID int64
	Paid   int64
	Owed   int64
	Net    int64
}

// AggregateBalances folds every bill in the room into one balance record
// per member. Uploaders accrue Paid by their bill totals; sharers accrue
// Owed by their resolved item shares.
//
// Every room member appears in the result, zero-valued when they never
// paid and never shared. Output is sorted by ascending user id.
//
// A bill uploaded by or shared with a non-member fails the whole
// aggregation with ErrInvalidAllocation; malformed bills are surfaced,
// not skipped.
func AggregateBalances(memberIDs []int64, bills []core.Bill) ([]MemberBalance, error) {
	members := make(map[int64]struct{}, len(memberIDs))
	for _, id := range memberIDs {
		members[id] = struct{}{}
	}

	paid := make(map[int64]int64)
	owed := make(map[int64]int64)

	for _, bill := range bills {
		if _, ok := members[bill.UploadedBy]; !ok {
			return nil, fmt.Errorf("bill %d: uploader %d is not a room member: %w", bill.ID, bill.UploadedBy, ErrInvalidAllocation)
		}
		paid[bill.UploadedBy] += bill.Total.Cents
		for _, item := range bill.Items {
			shares, err := ResolveShares(item.Amount.Cents, item.SharedBy, members)
			if err != nil {
				return nil, fmt.Errorf("bill %d item %q: %w", bill.ID, item.Description, err)
			}
			for userID, share := range shares {
				owed[userID] += share
			}
		}
	}

	ids := make([]int64, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	balances := make([]MemberBalance, 0, len(ids))
	for _, id := range ids {
		balances = append(balances, MemberBalance{
			UserID: id,
			Paid:   paid[id],
			Owed:   owed[id],
			Net:    paid[id] - owed[id],
		})
	}
	return balances, nil
}
