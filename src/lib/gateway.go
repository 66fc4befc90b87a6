package lib

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"meetups/src/booking"
	"meetups/src/types"
	"net/http"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// LightningGateway talks to an LNbits-style wallet API. Invoices are
// issued at checkout and their status is polled until they pay out or
// lapse; the gateway never calls back into this service.
type LightningGateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

var _ booking.PaymentGateway = (*LightningGateway)(nil)

func NewLightningGateway() *LightningGateway {
	return &LightningGateway{
		baseURL: os.Getenv("LN_API_URL"),
		apiKey:  os.Getenv("LN_API_KEY"),
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// NewLightningGatewayWithClient Replace http client, base URL and key (tests)
func NewLightningGatewayWithClient(baseURL, apiKey string, client *http.Client) *LightningGateway {
	return &LightningGateway{baseURL: baseURL, apiKey: apiKey, client: client}
}

func (g *LightningGateway) CreateInvoice(ctx context.Context, amount decimal.Decimal, memo string, expiry time.Duration) (*booking.Invoice, error) {
	payload, err := json.Marshal(map[string]any{
		"out":    false,
		"amount": amount.IntPart(),
		"memo":   memo,
		"expiry": int(expiry.Seconds()),
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/api/v1/payments", g.baseURL), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Api-Key", g.apiKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := g.client.Do(req)
	if err != nil {
		log.Printf("[gateway] CreateInvoice failed: %s\n", err.Error())
		return nil, err
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	if res.StatusCode >= 300 {
		return nil, fmt.Errorf("gateway returned %d: %s", res.StatusCode, string(body))
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("gateway returned invalid json")
	}

	paymentHash := gjson.GetBytes(body, "payment_hash").String()
	paymentRequest := gjson.GetBytes(body, "payment_request").String()
	if paymentHash == "" || paymentRequest == "" {
		return nil, fmt.Errorf("gateway response missing payment fields")
	}
	return &booking.Invoice{
		PaymentReference: paymentHash,
		InvoiceString:    paymentRequest,
		ExpiresAt:        time.Now().UTC().Add(expiry),
	}, nil
}

func (g *LightningGateway) CheckStatus(ctx context.Context, paymentReference string) (types.InvoiceStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/api/v1/payments/%s", g.baseURL, paymentReference), nil)
	if err != nil {
		return types.INVOICE_ERROR, err
	}
	req.Header.Set("X-Api-Key", g.apiKey)

	res, err := g.client.Do(req)
	if err != nil {
		return types.INVOICE_ERROR, err
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return types.INVOICE_ERROR, err
	}
	if res.StatusCode == http.StatusNotFound {
		return types.INVOICE_EXPIRED, nil
	}
	if res.StatusCode >= 300 {
		return types.INVOICE_ERROR, fmt.Errorf("gateway returned %d: %s", res.StatusCode, string(body))
	}
	if !gjson.ValidBytes(body) {
		return types.INVOICE_ERROR, fmt.Errorf("gateway returned invalid json")
	}

	if gjson.GetBytes(body, "paid").Bool() {
		return types.INVOICE_PAID, nil
	}
	if expiresAt := gjson.GetBytes(body, "details.expiry").Int(); expiresAt > 0 && time.Now().UTC().Unix() > expiresAt {
		return types.INVOICE_EXPIRED, nil
	}
	return types.INVOICE_PENDING, nil
}
