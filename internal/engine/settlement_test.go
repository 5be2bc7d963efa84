package engine

import (
	"errors"
	"reflect"
	"testing"
)

func balancesFromNets(nets map[int64]int64) []MemberBalance {
	var out []MemberBalance
	for id, net := range nets {
		out = append(out, MemberBalance{UserID: id, Net: net})
	}
	return out
}

// applyTransactions replays the emitted payments against the starting nets
// and returns the residual balances.
func applyTransactions(nets map[int64]int64, txs []Transaction) map[int64]int64 {
	residual := make(map[int64]int64, len(nets))
	for id, net := range nets {
		residual[id] = net
	}
	for _, tx := range txs {
		residual[tx.FromUserID] += tx.Amount
		residual[tx.ToUserID] -= tx.Amount
	}
	return residual
}

func TestSettle(t *testing.T) {
	tests := []struct {
		name    string
		nets    map[int64]int64
		wantErr error
		maxTxs  int
		want    []Transaction // nil to only check properties
	}{
		{
			name:   "two debtors one creditor",
			nets:   map[int64]int64{1: 60000, 2: -30000, 3: -30000},
			maxTxs: 2,
			want: []Transaction{
				{FromUserID: 2, ToUserID: 1, Amount: 30000},
				{FromUserID: 3, ToUserID: 1, Amount: 30000},
			},
		},
		{
			name:   "chain settles in n-1",
			nets:   map[int64]int64{1: 500, 2: 300, 3: -800},
			maxTxs: 2,
			want: []Transaction{
				{FromUserID: 3, ToUserID: 1, Amount: 500},
				{FromUserID: 3, ToUserID: 2, Amount: 300},
			},
		},
		{
			name: "largest matched with largest each round",
			// After 9 settles against 10, the leftover credit of 1 must
			// not outrank the remaining credit of 8.
			nets:   map[int64]int64{1: 1000, 2: 800, 3: -900, 4: -900},
			maxTxs: 3,
			want: []Transaction{
				{FromUserID: 3, ToUserID: 1, Amount: 900},
				{FromUserID: 4, ToUserID: 2, Amount: 800},
				{FromUserID: 4, ToUserID: 1, Amount: 100},
			},
		},
		{
			name:   "zero balances emit nothing",
			nets:   map[int64]int64{1: 0, 2: 0},
			maxTxs: 0,
		},
		{
			name:    "unbalanced input rejected",
			nets:    map[int64]int64{1: 100, 2: -99},
			wantErr: ErrUnbalancedInput,
		},
		{
			name:   "mixed magnitudes",
			nets:   map[int64]int64{1: 12250, 2: -4100, 3: -4100, 4: -4050},
			maxTxs: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txs, err := Settle(balancesFromNets(tt.nets))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Settle() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Settle() error = %v", err)
			}
			if len(txs) > tt.maxTxs {
				t.Errorf("emitted %d transactions, bound is %d", len(txs), tt.maxTxs)
			}
			for _, tx := range txs {
				if tx.Amount <= 0 {
					t.Errorf("non-positive transaction amount: %+v", tx)
				}
			}
			residual := applyTransactions(tt.nets, txs)
			for id, r := range residual {
				if r != 0 {
					t.Errorf("member %d left with residual balance %d", id, r)
				}
			}
			if tt.want != nil && !reflect.DeepEqual(txs, tt.want) {
				t.Errorf("transactions = %+v, want %+v", txs, tt.want)
			}
		})
	}
}

func TestSettleDeterministic(t *testing.T) {
	nets := map[int64]int64{1: 700, 2: 700, 3: -700, 4: -700}

	first, err := Settle(balancesFromNets(nets))
	if err != nil {
		t.Fatalf("Settle() error = %v", err)
	}
	for i := 0; i < 50; i++ {
		again, err := Settle(balancesFromNets(nets))
		if err != nil {
			t.Fatalf("Settle() error = %v", err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d diverged: %+v vs %+v", i, again, first)
		}
	}

	// Equal amounts: ties must resolve toward the lower user id.
	if first[0].FromUserID != 3 || first[0].ToUserID != 1 {
		t.Errorf("first transaction = %+v, want debtor 3 paying creditor 1", first[0])
	}
}

func TestSettleTransactionCountBound(t *testing.T) {
	// One creditor against many debtors of varying size: never more than
	// n-1 payments for n non-zero balances.
	nets := map[int64]int64{10: 0}
	var total int64
	for id := int64(1); id <= 9; id++ {
		nets[id] = -id * 111
		total += id * 111
	}
	nets[10] = total

	txs, err := Settle(balancesFromNets(nets))
	if err != nil {
		t.Fatalf("Settle() error = %v", err)
	}
	if len(txs) > 9 {
		t.Errorf("emitted %d transactions for 10 non-zero balances", len(txs))
	}
	residual := applyTransactions(nets, txs)
	for id, r := range residual {
		if r != 0 {
			t.Errorf("member %d residual = %d", id, r)
		}
	}
}
