package domain

// PaymentMethod selects how an order is paid.
type PaymentMethod string

const (
	PaymentMethodCOD     PaymentMethod = "cod"
	PaymentMethodGateway PaymentMethod = "gateway"
)

// ParsePaymentMethod accepts the short and long spellings used by clients.
func ParsePaymentMethod(raw string) (PaymentMethod, bool) {
	switch raw {
	case "cod", "cash_on_delivery":
		return PaymentMethodCOD, true
	case "gateway", "razorpay", "online":
		return PaymentMethodGateway, true
	}
	return "", false
}

type OrderStatus string

const (
	OrderStatusPending OrderStatus = "pending"
	OrderStatusPaid    OrderStatus = "paid"
)

// Order is the client's cached copy of a backend order. It can be stale.
type Order struct {
	ID              string          `json:"id"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
	Status          OrderStatus     `json:"status"`
	TotalAmount     float64         `json:"total_amount"`
}
