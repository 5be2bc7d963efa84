// Package engine computes room settlement: it turns a room's bills and
// per-item sharing assignments into member balances and a minimal list of
// settling payments.
//
// The engine is pure. It holds no state, performs no I/O, and does all
// arithmetic in integer cents so that item shares reconstruct item totals
// exactly. Callers hand it a consistent snapshot of one room.
package engine

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrInvalidAllocation marks a malformed item: shared by nobody, or
	// shared by someone outside the room's membership.
	ErrInvalidAllocation = errors.New("invalid allocation")

	// ErrUnbalancedInput marks net balances that do not sum to zero. That
	// is an upstream data-integrity fault; the solver refuses to guess.
	ErrUnbalancedInput = errors.New("unbalanced input")
)

// ResolveShares splits an item amount (cents) among the sharing members.
//
// Every sharer receives floor(amount/k); the remainder is handed out one
// cent at a time in ascending member id order, so the split is
// deterministic and the shares always sum to exactly amountCents.
func ResolveShares(amountCents int64, sharedBy []int64, members map[int64]struct{}) (map[int64]int64, error) {
	if len(sharedBy) == 0 {
		return nil, fmt.Errorf("%w: item has no sharers", ErrInvalidAllocation)
	}

	ids := make([]int64, 0, len(sharedBy))
	seen := make(map[int64]struct{}, len(sharedBy))
	for _, id := range sharedBy {
		if _, ok := members[id]; !ok {
			return nil, fmt.Errorf("%w: sharer %d is not a room member", ErrInvalidAllocation, id)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: duplicate sharer %d", ErrInvalidAllocation, id)
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	k := int64(len(ids))
	base := amountCents / k
	remainder := amountCents - base*k

	shares := make(map[int64]int64, len(ids))
	for i, id := range ids {
		share := base
		if int64(i) < remainder {
			share++
		}
		shares[id] = share
	}
	return shares, nil
}
