package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPayPalTestClient(serverURL string) *PayPalClient {
	cfg := newTestConfig()
	cfg.PayPalAPIBase = serverURL
	cfg.PayPalClientID = "client-id"
	cfg.PayPalSecret = "client-secret"
	cfg.PayPalBrandName = "ArtGrid"
	return NewPayPalClient(cfg)
}

func TestPayPalCreateOrder(t *testing.T) {
	var gotAuth string
	var gotBody createOrderRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v2/checkout/orders", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":     "5O190127TN364715T",
			"status": "CREATED",
			"links": []map[string]string{
				{"href": "https://gateway.test/self", "rel": "self"},
				{"href": "https://gateway.test/approve", "rel": "approve"},
			},
		})
	}))
	defer server.Close()

	client := newPayPalTestClient(server.URL)

	result, err := client.CreateOrder(context.Background(), CreateOrderInput{
		ReferenceID: "asset-1",
		Description: "Purchase of Test Asset",
		CustomID:    "user-1|asset-1",
		AmountCents: 500,
		Currency:    "USD",
		ReturnURL:   "http://api.test/capture",
		CancelURL:   "http://app.test/cancel",
	})
	require.NoError(t, err)

	assert.Equal(t, "5O190127TN364715T", result.OrderID)
	assert.Equal(t, "https://gateway.test/approve", result.ApprovalLink)

	expectedAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte("client-id:client-secret"))
	assert.Equal(t, expectedAuth, gotAuth)

	assert.Equal(t, "CAPTURE", gotBody.Intent)
	require.Len(t, gotBody.PurchaseUnits, 1)
	assert.Equal(t, "user-1|asset-1", gotBody.PurchaseUnits[0].CustomID)
	assert.Equal(t, "5.00", gotBody.PurchaseUnits[0].Amount.Value)
	assert.Equal(t, "USD", gotBody.PurchaseUnits[0].Amount.CurrencyCode)
	assert.Equal(t, "PAY_NOW", gotBody.ApplicationContext.UserAction)
	assert.Equal(t, "http://api.test/capture", gotBody.ApplicationContext.ReturnURL)
}

func TestPayPalCreateOrderNoApprovalLink(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"id": "X", "links": []map[string]string{}})
	}))
	defer server.Close()

	client := newPayPalTestClient(server.URL)
	_, err := client.CreateOrder(context.Background(), CreateOrderInput{AmountCents: 500, Currency: "USD"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no approval link")
}

func TestPayPalCaptureOrder(t *testing.T) {
	t.Run("completed", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/v2/checkout/orders/5O190127TN364715T/capture", r.URL.Path)
			json.NewEncoder(w).Encode(map[string]string{"status": "COMPLETED"})
		}))
		defer server.Close()

		client := newPayPalTestClient(server.URL)
		result, err := client.CaptureOrder(context.Background(), "5O190127TN364715T")
		require.NoError(t, err)
		assert.Equal(t, "COMPLETED", result.Status)
		assert.NotEmpty(t, result.Raw)
	})

	t.Run("non-2xx surfaces status and body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			w.Write([]byte(`{"name":"UNPROCESSABLE_ENTITY","details":[{"issue":"ORDER_NOT_APPROVED"}]}`))
		}))
		defer server.Close()

		client := newPayPalTestClient(server.URL)
		_, err := client.CaptureOrder(context.Background(), "ORDER-1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 422")
		assert.Contains(t, err.Error(), "ORDER_NOT_APPROVED")
	})
}

func TestPayPalGetOrder(t *testing.T) {
	t.Run("returns the gateway's order status", func(t *testing.T) {
		var gotAuth string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodGet, r.Method)
			require.Equal(t, "/v2/checkout/orders/5O190127TN364715T", r.URL.Path)
			gotAuth = r.Header.Get("Authorization")
			json.NewEncoder(w).Encode(map[string]string{"id": "5O190127TN364715T", "status": "COMPLETED"})
		}))
		defer server.Close()

		client := newPayPalTestClient(server.URL)
		result, err := client.GetOrder(context.Background(), "5O190127TN364715T")
		require.NoError(t, err)
		assert.Equal(t, "COMPLETED", result.Status)

		expectedAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte("client-id:client-secret"))
		assert.Equal(t, expectedAuth, gotAuth)
	})

	t.Run("unknown order surfaces status and body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"name":"RESOURCE_NOT_FOUND"}`))
		}))
		defer server.Close()

		client := newPayPalTestClient(server.URL)
		_, err := client.GetOrder(context.Background(), "NEVER-PAID")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 404")
		assert.Contains(t, err.Error(), "RESOURCE_NOT_FOUND")
	})
}

func TestFormatMinorUnits(t *testing.T) {
	assert.Equal(t, "5.00", formatMinorUnits(500))
	assert.Equal(t, "0.05", formatMinorUnits(5))
	assert.Equal(t, "12.34", formatMinorUnits(1234))
	assert.Equal(t, "0.00", formatMinorUnits(0))
}
