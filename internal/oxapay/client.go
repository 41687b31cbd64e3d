package oxapay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ProviderError carries the gateway's own message. OxaPay signals failures
// through a result code inside a 2xx body as often as through HTTP status,
// so both paths end up here.
type ProviderError struct {
	HTTPStatus int
	Result     int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("oxapay: result=%d http=%d: %s", e.Result, e.HTTPStatus, e.Message)
}

// Client talks to the OxaPay merchant and payout APIs.
type Client struct {
	baseURL    string
	apiKey     string
	payoutKey  string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey, payoutKey string) *Client {
	return &Client{
		baseURL:   baseURL,
		apiKey:    apiKey,
		payoutKey: payoutKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// InvoiceRequest creates a payment invoice the user is redirected to.
type InvoiceRequest struct {
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	OrderID     string  `json:"order_id"`
	CallbackURL string  `json:"callback_url"`
	ReturnURL   string  `json:"return_url,omitempty"`
	Description string  `json:"description,omitempty"`
	Lifetime    int     `json:"lifetime,omitempty"` // minutes
}

// PayoutRequest asks the provider to send crypto out.
type PayoutRequest struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Address  string  `json:"address"`
	Memo     string  `json:"memo,omitempty"`
	OrderID  string  `json:"order_id"`
}

// Payment is the normalized response shape. The provider spells the
// correlation key three different ways across endpoints; TrackID always
// holds whichever was present.
type Payment struct {
	TrackID    string  `json:"track_id"`
	PaymentURL string  `json:"payment_url"`
	Status     string  `json:"status"`
	Amount     float64 `json:"amount"`
	Currency   string  `json:"currency"`
	TxHash     string  `json:"tx_hash"`
	ExpiresAt  int64   `json:"expires_at"`
}

// rawPayment mirrors the loose provider schema before normalization.
type rawPayment struct {
	Result     int             `json:"result"`
	Message    string          `json:"message"`
	TrackID    json.RawMessage `json:"track_id"`
	ID         json.RawMessage `json:"id"`
	PaymentID  json.RawMessage `json:"payment_id"`
	PayLink    string          `json:"payLink"`
	PaymentURL string          `json:"payment_url"`
	Status     string          `json:"status"`
	Amount     float64         `json:"amount"`
	Currency   string          `json:"currency"`
	TxHash     string          `json:"tx_hash"`
	ExpiredAt  int64           `json:"expired_at"`
}

const resultOK = 100

// CreateInvoice creates a payment invoice and returns the normalized result.
func (c *Client) CreateInvoice(ctx context.Context, req *InvoiceRequest) (*Payment, error) {
	return c.post(ctx, "/v1/payment/invoice", c.apiKey, req)
}

// CreatePayout submits a withdrawal to the provider. The caller must have
// debited the balance already; there is no hold primitive on this API.
func (c *Client) CreatePayout(ctx context.Context, req *PayoutRequest) (*Payment, error) {
	return c.post(ctx, "/withdrawals", c.payoutKey, req)
}

// GetPaymentStatus polls one invoice, the webhook-independent fallback path.
func (c *Client) GetPaymentStatus(ctx context.Context, trackID string) (*Payment, error) {
	return c.get(ctx, "/v1/payment/"+trackID, c.apiKey)
}

// GetPayoutStatus polls one payout.
func (c *Client) GetPayoutStatus(ctx context.Context, trackID string) (*Payment, error) {
	return c.get(ctx, "/withdrawals/"+trackID, c.payoutKey)
}

func (c *Client) post(ctx context.Context, path, key string, payload interface{}) (*Payment, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("merchant_api_key", key)
	return c.do(req)
}

func (c *Client) get(ctx context.Context, path, key string) (*Payment, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("merchant_api_key", key)
	return c.do(req)
}

func (c *Client) do(req *http.Request) (*Payment, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var raw rawPayment
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("oxapay: decode response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ProviderError{HTTPStatus: resp.StatusCode, Result: raw.Result, Message: raw.Message}
	}
	if raw.Result != 0 && raw.Result != resultOK {
		return nil, &ProviderError{HTTPStatus: resp.StatusCode, Result: raw.Result, Message: raw.Message}
	}

	return raw.normalize(), nil
}

func (r *rawPayment) normalize() *Payment {
	p := &Payment{
		Status:    r.Status,
		Amount:    r.Amount,
		Currency:  r.Currency,
		TxHash:    r.TxHash,
		ExpiresAt: r.ExpiredAt,
	}
	for _, f := range []json.RawMessage{r.TrackID, r.ID, r.PaymentID} {
		if v := flexString(f); v != "" {
			p.TrackID = v
			break
		}
	}
	p.PaymentURL = r.PayLink
	if p.PaymentURL == "" {
		p.PaymentURL = r.PaymentURL
	}
	return p
}

// flexString accepts the provider sending correlation IDs as either JSON
// strings or bare numbers.
func flexString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}
