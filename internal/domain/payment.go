package domain

import "time"

// PaymentIntent is the gateway order created for one internal order.
type PaymentIntent struct {
	GatewayOrderID string  `json:"gateway_order_id"`
	Amount         float64 `json:"amount"`
	Currency       string  `json:"currency"`
	KeyID          string  `json:"key_id"`
	PaymentID      string  `json:"payment_id,omitempty"`
}

// GatewayPayment carries the identifiers the hosted widget hands back after payment.
type GatewayPayment struct {
	GatewayOrderID   string `json:"razorpay_order_id"`
	GatewayPaymentID string `json:"razorpay_payment_id"`
	Signature        string `json:"razorpay_signature"`
}

type VerificationResult struct {
	Success bool `json:"success"`
}

// PaymentEvent is one recorded state change of a payment attempt.
type PaymentEvent struct {
	ID               int64         `json:"id"`
	AttemptID        string        `json:"attempt_id"`
	OrderID          string        `json:"order_id"`
	Method           PaymentMethod `json:"payment_method"`
	FromState        string        `json:"from_state"`
	ToState          string        `json:"to_state"`
	GatewayOrderID   string        `json:"gateway_order_id,omitempty"`
	GatewayPaymentID string        `json:"gateway_payment_id,omitempty"`
	Detail           string        `json:"detail,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
}
