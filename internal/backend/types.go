package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"marketplace-checkout/internal/domain"
)

// flexID accepts identifiers the backend sends either as numbers or strings.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*f = flexID(n.String())
	return nil
}

// flexAmount accepts decimal amounts sent as numbers or as decimal strings.
type flexAmount float64

func (f *flexAmount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*f = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("amount: %w", err)
		}
		*f = flexAmount(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	*f = flexAmount(v)
	return nil
}

type cartResponse struct {
	Items []cartItemResponse `json:"items"`
}

type cartItemResponse struct {
	ProductID flexID           `json:"product_id"`
	Name      string           `json:"name"`
	Quantity  int              `json:"quantity"`
	Price     flexAmount       `json:"price"`
	Product   *productResponse `json:"product,omitempty"`
}

type productResponse struct {
	ID    flexID     `json:"id"`
	Name  string     `json:"name"`
	Price flexAmount `json:"price"`
}

type serviceabilityResponse struct {
	Serviceable bool   `json:"serviceable"`
	Message     string `json:"message"`
}

type createOrderRequest struct {
	ShippingAddress domain.ShippingAddress `json:"shipping_address"`
	PaymentMethod   string                 `json:"payment_method"`
}

type orderResponse struct {
	ID              flexID                 `json:"id"`
	TotalAmount     flexAmount             `json:"total_amount"`
	Status          string                 `json:"status"`
	ShippingAddress domain.ShippingAddress `json:"shipping_address"`
}

func (o orderResponse) toDomain(address domain.ShippingAddress) *domain.Order {
	status := domain.OrderStatus(strings.ToLower(strings.TrimSpace(o.Status)))
	if status == "" {
		status = domain.OrderStatusPending
	}
	return &domain.Order{
		ID:              string(o.ID),
		ShippingAddress: address,
		Status:          status,
		TotalAmount:     float64(o.TotalAmount),
	}
}

type createPaymentOrderRequest struct {
	OrderID string  `json:"order_id"`
	Amount  float64 `json:"amount"`
}

type paymentIntentResponse struct {
	GatewayOrderID string     `json:"gateway_order_id"`
	Amount         flexAmount `json:"amount"`
	Currency       string     `json:"currency"`
	KeyID          string     `json:"key_id"`
	PaymentID      flexID     `json:"payment_id"`
}

type verifyPaymentRequest struct {
	GatewayOrderID   string `json:"razorpay_order_id"`
	GatewayPaymentID string `json:"razorpay_payment_id"`
	Signature        string `json:"razorpay_signature"`
	OrderID          string `json:"order_id"`
}
