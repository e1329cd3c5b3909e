package attempt

import (
	"context"

	"marketplace-checkout/internal/domain"
)

// Unverified is a gateway attempt that failed after the customer paid.
type Unverified struct {
	AttemptID        string
	OrderID          string
	GatewayOrderID   string
	GatewayPaymentID string
	Detail           string
}

type Repository interface {
	Record(ctx context.Context, e domain.PaymentEvent) error
	ListByOrder(ctx context.Context, orderID string) ([]domain.PaymentEvent, error)
	ListUnverified(ctx context.Context, limit int) ([]Unverified, error)
}
