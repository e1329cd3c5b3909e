package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace-checkout/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", 2*time.Second, nil).WithToken("tok-123")
}

func TestGetCart_DecodesFlexibleShapes(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/cart", r.URL.Path)
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		w.Write([]byte(`{"items":[
			{"product_id":7,"name":"Mug","quantity":2,"price":"500.00"},
			{"quantity":1,"product":{"id":"p-9","name":"Tee","price":250}}
		]}`))
	})

	cart, err := client.GetCart(context.Background())
	require.NoError(t, err)
	require.Len(t, cart.Items, 2)
	assert.Equal(t, domain.CartItem{ProductID: "7", Name: "Mug", Quantity: 2, UnitPrice: 500}, cart.Items[0])
	assert.Equal(t, domain.CartItem{ProductID: "p-9", Name: "Tee", Quantity: 1, UnitPrice: 250}, cart.Items[1])
	assert.Equal(t, 1250.0, cart.DisplayTotal())
}

func TestCheckServiceability_SendsPostalCode(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/shipping/serviceability", r.URL.Path)
		assert.Equal(t, "400001", r.URL.Query().Get("postal_code"))
		w.Write([]byte(`{"serviceable":true,"message":"Delivery available"}`))
	})

	res, err := client.CheckServiceability(context.Background(), "400001")
	require.NoError(t, err)
	assert.Equal(t, domain.ServiceabilityResult{PostalCode: "400001", Serviceable: true, Message: "Delivery available"}, res)
}

func TestCreateOrder_SurfacesBackendMessage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"Only 1 left in stock"}`))
	})

	_, err := client.CreateOrder(context.Background(), CreateOrderInput{PaymentMethod: domain.PaymentMethodCOD})
	require.Error(t, err)
	var te *domain.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.StatusBadRequest, te.StatusCode)
	assert.Equal(t, "Only 1 left in stock", domain.BackendMessage(err))
}

func TestCreateOrder_SendsAddressAndIdempotencyKey(t *testing.T) {
	var calls int
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "key-1", r.Header.Get("Idempotency-Key"))
		var body createOrderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "400001", body.ShippingAddress.PostalCode)
		assert.Equal(t, "cod", body.PaymentMethod)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":42,"total_amount":"1000.00","status":"PENDING"}`))
	})

	order, err := client.CreateOrder(context.Background(), CreateOrderInput{
		ShippingAddress: domain.ShippingAddress{PostalCode: "400001"},
		PaymentMethod:   domain.PaymentMethodCOD,
		IdempotencyKey:  "key-1",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "42", order.ID)
	assert.Equal(t, 1000.0, order.TotalAmount)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Equal(t, "400001", order.ShippingAddress.PostalCode)
}

func TestCreatePaymentOrder_RequiresGatewayOrderID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"amount":1000}`))
	})

	_, err := client.CreatePaymentOrder(context.Background(), "42", 1000)
	require.Error(t, err)
}

func TestVerifyPayment_SendsAllIdentifiers(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body verifyPaymentRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, verifyPaymentRequest{
			GatewayOrderID:   "order_G1",
			GatewayPaymentID: "pay_P1",
			Signature:        "sig",
			OrderID:          "42",
		}, body)
		w.Write([]byte(`{"success":true}`))
	})

	res, err := client.VerifyPayment(context.Background(), "42", domain.GatewayPayment{
		GatewayOrderID:   "order_G1",
		GatewayPaymentID: "pay_P1",
		Signature:        "sig",
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestGetDefaultAddress_NotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.GetDefaultAddress(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestClient_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()
	client := NewClient(srv.URL, time.Second, nil)

	_, err := client.CheckServiceability(context.Background(), "400001")
	var te *domain.TransportError
	require.True(t, errors.As(err, &te))
	assert.Zero(t, te.StatusCode)
	assert.Empty(t, domain.BackendMessage(err))
}

func TestExtractMessage(t *testing.T) {
	assert.Equal(t, "bad", extractMessage([]byte(`{"message":"bad"}`)))
	assert.Equal(t, "first", extractMessage([]byte(`{"detail":["first","second"]}`)))
	assert.Equal(t, "", extractMessage([]byte(`<html>oops</html>`)))
	assert.Equal(t, "", extractMessage(nil))
}
