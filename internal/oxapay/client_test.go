package oxapay

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCreateInvoiceNormalizesTrackID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/payment/invoice" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("merchant_api_key") != "merchant-key" {
			t.Errorf("missing merchant key header")
		}
		w.Header().Set("Content-Type", "application/json")
		// numeric track_id, payLink spelling
		w.Write([]byte(`{"result":100,"track_id":987654,"payLink":"https://pay.example/987654","status":"waiting"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "merchant-key", "payout-key")
	p, err := c.CreateInvoice(context.Background(), &InvoiceRequest{Amount: 0.5, Currency: "TON", OrderID: "o1"})
	if err != nil {
		t.Fatal(err)
	}
	if p.TrackID != "987654" {
		t.Fatalf("track id: got %q, want 987654", p.TrackID)
	}
	if p.PaymentURL != "https://pay.example/987654" {
		t.Fatalf("payment url: got %q", p.PaymentURL)
	}
}

func TestProviderErrorInsideOKBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":101,"message":"invalid api key"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "bad-key", "payout-key")
	_, err := c.CreateInvoice(context.Background(), &InvoiceRequest{Amount: 0.5, Currency: "TON"})

	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if pe.Result != 101 || pe.HTTPStatus != 200 {
		t.Fatalf("unexpected error fields: %+v", pe)
	}
}

func TestProviderErrorOnHTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"message":"down"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", "k")
	_, err := c.GetPaymentStatus(context.Background(), "t1")

	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if pe.HTTPStatus != http.StatusServiceUnavailable {
		t.Fatalf("http status: got %d", pe.HTTPStatus)
	}
}

func TestCreatePayoutUsesPayoutKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/withdrawals" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("merchant_api_key") != "payout-key" {
			t.Errorf("payout must use the payout key, got %q", r.Header.Get("merchant_api_key"))
		}
		w.Write([]byte(`{"result":100,"id":"w-77","status":"processing"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "merchant-key", "payout-key")
	p, err := c.CreatePayout(context.Background(), &PayoutRequest{Amount: 1, Currency: "TON", Address: "addr"})
	if err != nil {
		t.Fatal(err)
	}
	if p.TrackID != "w-77" {
		t.Fatalf("track id fallback to id field: got %q", p.TrackID)
	}
}
