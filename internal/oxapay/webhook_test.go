package oxapay

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestCallbackKind(t *testing.T) {
	cases := []struct {
		typ  string
		want string
	}{
		{"", CallbackPayment},
		{"payment", CallbackPayment},
		{"invoice", CallbackPayment},
		{"payout", CallbackPayout},
		{"Withdraw", CallbackPayout},
		{"WITHDRAWAL", CallbackPayout},
	}
	for _, c := range cases {
		cb := Callback{Type: c.typ}
		if got := cb.Kind(); got != c.want {
			t.Errorf("Kind(%q) = %q, want %q", c.typ, got, c.want)
		}
	}
}

func TestCallbackOutcome(t *testing.T) {
	cases := []struct {
		status string
		want   string
	}{
		{"completed", OutcomeCompleted},
		{"Paid", OutcomeCompleted},
		{"confirmed", OutcomeCompleted},
		{"success", OutcomeCompleted},
		{"failed", OutcomeFailed},
		{"expired", OutcomeFailed},
		{"cancelled", OutcomeFailed},
		{"canceled", OutcomeFailed},
		{"rejected", OutcomeFailed},
		{"processing", OutcomeProcessing},
		{"confirming", OutcomeProcessing},
		{"waiting", OutcomeProcessing},
		{"pending", OutcomeProcessing},
		{"", OutcomeUnknown},
		{"weird", OutcomeUnknown},
	}
	for _, c := range cases {
		cb := Callback{Status: c.status}
		if got := cb.Outcome(); got != c.want {
			t.Errorf("Outcome(%q) = %q, want %q", c.status, got, c.want)
		}
	}
}

func TestCorrelationKeysOrder(t *testing.T) {
	var cb Callback
	err := json.Unmarshal([]byte(`{
		"track_id": 12345,
		"id": "inv-1",
		"payment_id": "pay-1",
		"order_id": "ord-1"
	}`), &cb)
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"12345", "inv-1", "pay-1", "ord-1"}
	if got := cb.CorrelationKeys(); !reflect.DeepEqual(got, want) {
		t.Fatalf("keys = %v, want %v", got, want)
	}
}

func TestCorrelationKeysDropEmpty(t *testing.T) {
	var cb Callback
	if err := json.Unmarshal([]byte(`{"order_id": "ord-2"}`), &cb); err != nil {
		t.Fatal(err)
	}
	want := []string{"ord-2"}
	if got := cb.CorrelationKeys(); !reflect.DeepEqual(got, want) {
		t.Fatalf("keys = %v, want %v", got, want)
	}

	var empty Callback
	if got := empty.CorrelationKeys(); len(got) != 0 {
		t.Fatalf("empty callback produced keys %v", got)
	}
}
