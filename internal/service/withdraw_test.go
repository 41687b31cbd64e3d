package service

import (
	"encoding/json"
	"testing"

	"skyton/internal/domain"
)

func TestDecodeBreakdown(t *testing.T) {
	raw, _ := json.Marshal(map[domain.BalanceType]int64{
		domain.BalanceBox:  30,
		domain.BalanceTask: 70,
	})

	mix := decodeBreakdown(raw, 100)
	if mix[domain.BalanceBox] != 30 || mix[domain.BalanceTask] != 70 {
		t.Fatalf("stored mix should round-trip: %v", mix)
	}
}

func TestDecodeBreakdownFallsBackToTask(t *testing.T) {
	// missing breakdown
	mix := decodeBreakdown(nil, 100)
	if mix[domain.BalanceTask] != 100 || len(mix) != 1 {
		t.Fatalf("missing mix should refund all to task: %v", mix)
	}

	// mix that does not cover the amount
	raw, _ := json.Marshal(map[domain.BalanceType]int64{domain.BalanceBox: 30})
	mix = decodeBreakdown(raw, 100)
	if mix[domain.BalanceTask] != 100 || len(mix) != 1 {
		t.Fatalf("short mix should refund all to task: %v", mix)
	}
}
