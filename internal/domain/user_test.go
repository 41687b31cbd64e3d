package domain

import "testing"

func TestBalanceViews(t *testing.T) {
	u := &User{
		Balance:         1000,
		TaskBalance:     400,
		BoxBalance:      100,
		ReferralBalance: 200,
		MiningBalance:   300,
	}

	if got := u.PurchasableBalance(); got != 700 {
		t.Fatalf("purchasable: got %d, want 700 (task+mining)", got)
	}
	if got := u.WithdrawableBalance(); got != 1000 {
		t.Fatalf("withdrawable: got %d, want 1000", got)
	}
	if got := u.BreakdownSum(); got != u.Balance {
		t.Fatalf("breakdown sum %d diverged from balance %d", got, u.Balance)
	}
}

func TestValidBalanceType(t *testing.T) {
	for _, typ := range []BalanceType{BalanceTask, BalanceBox, BalanceReferral, BalanceMining} {
		if !ValidBalanceType(typ) {
			t.Fatalf("%s should be valid", typ)
		}
	}
	if ValidBalanceType("bonus") {
		t.Fatal("unknown type should be invalid")
	}
}

func TestHasWallet(t *testing.T) {
	u := &User{}
	if u.HasWallet() {
		t.Fatal("empty wallet should not count as bound")
	}
	u.Wallet = "UQAbcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQr-_"
	if !u.HasWallet() {
		t.Fatal("wallet should count as bound")
	}
}
