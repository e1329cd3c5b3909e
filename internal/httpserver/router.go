package httpserver

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"marketplace-checkout/internal/domain"
	"marketplace-checkout/internal/logging"
	"marketplace-checkout/internal/repository/attempt"
	"marketplace-checkout/internal/service/checkout"
)

type checkoutService interface {
	Open(ctx context.Context, token string) (*checkout.Session, error)
	Get(id, token string) (*checkout.Session, error)
}

type paymentLedger interface {
	ListByOrder(ctx context.Context, orderID string) ([]domain.PaymentEvent, error)
	ListUnverified(ctx context.Context, limit int) ([]attempt.Unverified, error)
}

// Deps holds the services the routes call into.
type Deps struct {
	Checkout       checkoutService
	Ledger         paymentLedger
	CartURL        string
	AllowedOrigins []string
	// InternalToken enables the support routes when set.
	InternalToken string
	Ready         map[string]Pinger
	Release       bool
}

// buildRouter wires routes for the API.
func buildRouter(logger *zap.Logger, deps Deps) (*gin.Engine, error) {
	if deps.Checkout == nil {
		return nil, errors.New("checkout service is required")
	}
	if deps.CartURL == "" {
		deps.CartURL = "/cart"
	}
	logger = logging.OrNop(logger)

	if deps.Release {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(recovery(logger), requestLogger(logger))
	if len(deps.AllowedOrigins) > 0 {
		router.Use(corsMiddleware(deps.AllowedOrigins))
	}

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(deps.Ready))

	h := &checkoutHandler{svc: deps.Checkout, cartURL: deps.CartURL, logger: logger}
	sessions := router.Group("/checkout/sessions", bearerToken())
	sessions.POST("", h.open)
	sessions.GET("/:id", h.get)
	sessions.PATCH("/:id/address", h.updateAddress)
	sessions.POST("/:id/orders", h.placeOrder)
	sessions.POST("/:id/payment/callback", h.paymentCallback)
	sessions.POST("/:id/payment/dismiss", h.dismissPayment)

	if deps.InternalToken != "" && deps.Ledger != nil {
		s := &supportHandler{ledger: deps.Ledger, logger: logger}
		internal := router.Group("/internal", internalOnly(deps.InternalToken))
		internal.GET("/orders/:order_id/payment-events", s.paymentEvents)
		internal.GET("/payments/unverified", s.unverified)
	}

	return router, nil
}
