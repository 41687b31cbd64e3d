package oxapay

import "testing"

func TestStonToTon(t *testing.T) {
	if got := StonToTon(30_000_000, 30_000_000); got != 1.0 {
		t.Fatalf("30M STON at 30M/TON: got %f, want 1", got)
	}
	if got := StonToTon(15_000_000, 30_000_000); got != 0.5 {
		t.Fatalf("15M STON: got %f, want 0.5", got)
	}
	if got := StonToTon(100, 0); got != 0 {
		t.Fatalf("zero rate: got %f, want 0", got)
	}
}

func TestTonToSton(t *testing.T) {
	if got := TonToSton(2.5, 30_000_000); got != 75_000_000 {
		t.Fatalf("2.5 TON: got %d, want 75M", got)
	}
	if got := TonToSton(1, -1); got != 0 {
		t.Fatalf("negative rate: got %d, want 0", got)
	}
}
