package order

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace-checkout/internal/backend"
	"marketplace-checkout/internal/domain"
)

type stubCreator struct {
	calls []backend.CreateOrderInput
	order *domain.Order
	err   error
}

func (s *stubCreator) CreateOrder(_ context.Context, in backend.CreateOrderInput) (*domain.Order, error) {
	s.calls = append(s.calls, in)
	return s.order, s.err
}

func TestSubmit_SingleRequestWithFreshKey(t *testing.T) {
	creator := &stubCreator{order: &domain.Order{ID: "42", TotalAmount: 1000, Status: domain.OrderStatusPending}}
	s := NewSubmitter(creator, nil)
	addr := domain.ShippingAddress{FullName: "Asha", PostalCode: "400001"}

	got, err := s.Submit(context.Background(), addr, domain.PaymentMethodCOD)
	require.NoError(t, err)
	assert.Equal(t, "42", got.ID)
	require.Len(t, creator.calls, 1)
	assert.Equal(t, addr, creator.calls[0].ShippingAddress)
	assert.NotEmpty(t, creator.calls[0].IdempotencyKey)

	_, err = s.Submit(context.Background(), addr, domain.PaymentMethodCOD)
	require.NoError(t, err)
	require.Len(t, creator.calls, 2)
	assert.NotEqual(t, creator.calls[0].IdempotencyKey, creator.calls[1].IdempotencyKey)
}

func TestSubmit_FailureIsNotRetried(t *testing.T) {
	creator := &stubCreator{err: &domain.TransportError{Op: "create order", StatusCode: 409, Message: "Price changed"}}
	s := NewSubmitter(creator, nil)

	got, err := s.Submit(context.Background(), domain.ShippingAddress{}, domain.PaymentMethodGateway)
	require.Error(t, err)
	assert.Nil(t, got)
	assert.Len(t, creator.calls, 1)
	assert.Equal(t, "Price changed", UserMessage(err))
}

func TestSubmit_MissingOrderID(t *testing.T) {
	s := NewSubmitter(&stubCreator{order: &domain.Order{}}, nil)

	_, err := s.Submit(context.Background(), domain.ShippingAddress{}, domain.PaymentMethodCOD)
	require.Error(t, err)
	assert.Equal(t, FallbackMessage, UserMessage(err))
}

func TestUserMessage_Fallback(t *testing.T) {
	assert.Equal(t, FallbackMessage, UserMessage(errors.New("dial tcp: refused")))
	assert.Equal(t, FallbackMessage, UserMessage(&domain.TransportError{Op: "create order", StatusCode: 500}))
}
