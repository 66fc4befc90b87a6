package lib

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"meetups/src/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestCreateInvoice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/payments", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))

		body, _ := io.ReadAll(r.Body)
		assert.False(t, gjson.GetBytes(body, "out").Bool())
		assert.Equal(t, int64(5500), gjson.GetBytes(body, "amount").Int())
		assert.Equal(t, int64(900), gjson.GetBytes(body, "expiry").Int())

		fmt.Fprint(w, `{"payment_hash":"abc123","payment_request":"lnbc55u1p"}`)
	}))
	defer server.Close()

	gateway := NewLightningGatewayWithClient(server.URL, "test-key", server.Client())
	invoice, err := gateway.CreateInvoice(context.Background(), decimal.NewFromInt(5500), "order TEST1234", 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "abc123", invoice.PaymentReference)
	assert.Equal(t, "lnbc55u1p", invoice.InvoiceString)
	assert.WithinDuration(t, time.Now().UTC().Add(15*time.Minute), invoice.ExpiresAt, 5*time.Second)
}

func TestCreateInvoice_GatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"wallet not found"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	gateway := NewLightningGatewayWithClient(server.URL, "bad-key", server.Client())
	_, err := gateway.CreateInvoice(context.Background(), decimal.NewFromInt(100), "memo", time.Minute)
	assert.ErrorContains(t, err, "gateway returned 401")
}

func TestCreateInvoice_MissingFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"checking_id":"xyz"}`)
	}))
	defer server.Close()

	gateway := NewLightningGatewayWithClient(server.URL, "test-key", server.Client())
	_, err := gateway.CreateInvoice(context.Background(), decimal.NewFromInt(100), "memo", time.Minute)
	assert.ErrorContains(t, err, "missing payment fields")
}

func TestCheckStatus(t *testing.T) {
	responses := map[string]string{
		"paid-hash":   `{"paid":true}`,
		"open-hash":   `{"paid":false,"details":{"expiry":` + fmt.Sprint(time.Now().UTC().Add(time.Hour).Unix()) + `}}`,
		"lapsed-hash": `{"paid":false,"details":{"expiry":` + fmt.Sprint(time.Now().UTC().Add(-time.Hour).Unix()) + `}}`,
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hash := r.URL.Path[len("/api/v1/payments/"):]
		body, ok := responses[hash]
		if !ok {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, body)
	}))
	defer server.Close()

	gateway := NewLightningGatewayWithClient(server.URL, "test-key", server.Client())

	cases := []struct {
		hash string
		want types.InvoiceStatus
	}{
		{"paid-hash", types.INVOICE_PAID},
		{"open-hash", types.INVOICE_PENDING},
		{"lapsed-hash", types.INVOICE_EXPIRED},
		{"unknown-hash", types.INVOICE_EXPIRED},
	}
	for _, c := range cases {
		status, err := gateway.CheckStatus(context.Background(), c.hash)
		require.NoError(t, err, c.hash)
		assert.Equal(t, c.want, status, c.hash)
	}
}

func TestCheckStatus_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	gateway := NewLightningGatewayWithClient(server.URL, "test-key", server.Client())
	status, err := gateway.CheckStatus(context.Background(), "any")
	assert.Error(t, err)
	assert.Equal(t, types.INVOICE_ERROR, status)
}
