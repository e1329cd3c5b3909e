package cache

import (
	"context"
	"errors"

	"marketplace-checkout/internal/domain"
)

// ServiceabilityCache remembers confirmed deliverability answers per postal code.
type ServiceabilityCache interface {
	Get(ctx context.Context, postalCode string) (*domain.ServiceabilityResult, error)
	Set(ctx context.Context, result domain.ServiceabilityResult) error
}

var ErrCacheMiss = errors.New("cache miss")
