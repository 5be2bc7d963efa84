package engine

import "fmt"

// Transaction is one settling payment from a debtor to a creditor, in
// cents. Amount is always positive.
type Transaction struct {
	FromUserID int64
	ToUserID   int64
	Amount     int64
}

type party struct {
	id  int64
	amt int64 // outstanding, always positive
}

// pickLargest returns the index of the party with the largest outstanding
// amount, breaking ties by ascending id.
func pickLargest(ps []party) int {
	best := 0
	for i := 1; i < len(ps); i++ {
		if ps[i].amt > ps[best].amt ||
			(ps[i].amt == ps[best].amt && ps[i].id < ps[best].id) {
			best = i
		}
	}
	return best
}

func drop(ps []party, i int) []party {
	return append(ps[:i], ps[i+1:]...)
}

// Settle computes the settling payments for a set of net balances.
//
// It repeatedly matches the largest outstanding debtor against the largest
// outstanding creditor and settles min(debt, credit) between them. Exact
// transaction-count minimization is a subset-sum search and NP-hard; this
// greedy matching emits at most n-1 transactions for n non-zero balances
// and hits the optimum in the common case. Ties are broken by ascending
// user id, so identical input always yields identical output.
//
// Balances must sum to exactly zero; anything else is an upstream
// integrity fault reported as ErrUnbalancedInput, never patched over.
func Settle(balances []MemberBalance) ([]Transaction, error) {
	var sum int64
	var debtors, creditors []party
	for _, b := range balances {
		sum += b.Net
		switch {
		case b.Net > 0:
			creditors = append(creditors, party{id: b.UserID, amt: b.Net})
		case b.Net < 0:
			debtors = append(debtors, party{id: b.UserID, amt: -b.Net})
		}
	}
	if sum != 0 {
		return nil, fmt.Errorf("%w: net balances sum to %d cents", ErrUnbalancedInput, sum)
	}

	var transactions []Transaction
	for len(debtors) > 0 && len(creditors) > 0 {
		di := pickLargest(debtors)
		ci := pickLargest(creditors)

		amount := debtors[di].amt
		if creditors[ci].amt < amount {
			amount = creditors[ci].amt
		}

		transactions = append(transactions, Transaction{
			FromUserID: debtors[di].id,
			ToUserID:   creditors[ci].id,
			Amount:     amount,
		})

		debtors[di].amt -= amount
		creditors[ci].amt -= amount
		if debtors[di].amt == 0 {
			debtors = drop(debtors, di)
		}
		if creditors[ci].amt == 0 {
			creditors = drop(creditors, ci)
		}
	}
	return transactions, nil
}
