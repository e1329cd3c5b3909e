package order

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"marketplace-checkout/internal/backend"
	"marketplace-checkout/internal/domain"
	"marketplace-checkout/internal/logging"
)

// FallbackMessage is shown when the backend rejects an order without saying why.
const FallbackMessage = "Checkout failed. Please try again."

type orderCreator interface {
	CreateOrder(ctx context.Context, in backend.CreateOrderInput) (*domain.Order, error)
}

// Submitter creates the backend order for a validated address.
type Submitter struct {
	backend orderCreator
	newKey  func() string
	logger  *zap.Logger
}

func NewSubmitter(b orderCreator, logger *zap.Logger) *Submitter {
	return &Submitter{
		backend: b,
		newKey:  uuid.NewString,
		logger:  logging.OrNop(logger),
	}
}

// Submit sends exactly one create-order request. A failure leaves no order behind on the client.
func (s *Submitter) Submit(ctx context.Context, address domain.ShippingAddress, method domain.PaymentMethod) (*domain.Order, error) {
	key := s.newKey()
	order, err := s.backend.CreateOrder(ctx, backend.CreateOrderInput{
		ShippingAddress: address,
		PaymentMethod:   method,
		IdempotencyKey:  key,
	})
	if err != nil {
		s.logger.Warn("order creation failed",
			zap.String("idempotency_key", key),
			zap.String("payment_method", string(method)),
			zap.Error(err),
		)
		return nil, err
	}
	if order == nil || order.ID == "" {
		return nil, &domain.TransportError{Op: "create order", Err: errors.New("response missing order id")}
	}
	s.logger.Info("order created",
		zap.String("order_id", order.ID),
		zap.Float64("total_amount", order.TotalAmount),
		zap.String("payment_method", string(method)),
	)
	return order, nil
}

// UserMessage turns a submission error into the text shown on the checkout screen.
func UserMessage(err error) string {
	if msg := domain.BackendMessage(err); msg != "" {
		return msg
	}
	return FallbackMessage
}
