package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"marketplace-checkout/internal/domain"
	"marketplace-checkout/internal/logging"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	maxErrorBody         = 64 << 10
)

// Client calls the commerce REST backend on behalf of one customer.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a backend client. Every request is bounded by timeout.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.OrNop(logger),
	}
}

// WithToken returns a copy that authenticates as the customer owning token.
func (c *Client) WithToken(token string) *Client {
	clone := *c
	clone.token = strings.TrimSpace(token)
	return &clone
}

// GetCart fetches the customer's current cart.
func (c *Client) GetCart(ctx context.Context) (*domain.Cart, error) {
	var out cartResponse
	if err := c.do(ctx, "get cart", http.MethodGet, "/cart", nil, nil, &out); err != nil {
		return nil, err
	}
	cart := &domain.Cart{Items: make([]domain.CartItem, 0, len(out.Items))}
	for _, item := range out.Items {
		name := item.Name
		if name == "" && item.Product != nil {
			name = item.Product.Name
		}
		productID := string(item.ProductID)
		if productID == "" && item.Product != nil {
			productID = string(item.Product.ID)
		}
		price := float64(item.Price)
		if price == 0 && item.Product != nil {
			price = float64(item.Product.Price)
		}
		cart.Items = append(cart.Items, domain.CartItem{
			ProductID: productID,
			Name:      name,
			Quantity:  item.Quantity,
			UnitPrice: price,
		})
	}
	return cart, nil
}

// ClearCart empties the customer's cart after a completed checkout.
func (c *Client) ClearCart(ctx context.Context) error {
	return c.do(ctx, "clear cart", http.MethodDelete, "/cart", nil, nil, nil)
}

// GetDefaultAddress returns the customer's saved default shipping address or domain.ErrNotFound.
func (c *Client) GetDefaultAddress(ctx context.Context) (*domain.ShippingAddress, error) {
	var out domain.ShippingAddress
	if err := c.do(ctx, "get default address", http.MethodGet, "/addresses/default", nil, nil, &out); err != nil {
		var te *domain.TransportError
		if errors.As(err, &te) && te.StatusCode == http.StatusNotFound {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}

// CheckServiceability asks whether the platform delivers to postalCode.
func (c *Client) CheckServiceability(ctx context.Context, postalCode string) (domain.ServiceabilityResult, error) {
	q := url.Values{}
	q.Set("postal_code", postalCode)
	var out serviceabilityResponse
	if err := c.do(ctx, "check serviceability", http.MethodGet, "/shipping/serviceability", q, nil, &out); err != nil {
		return domain.ServiceabilityResult{}, err
	}
	return domain.ServiceabilityResult{
		PostalCode:  postalCode,
		Serviceable: out.Serviceable,
		Message:     out.Message,
	}, nil
}

// CreateOrderInput is the payload of a single order creation.
type CreateOrderInput struct {
	ShippingAddress domain.ShippingAddress
	PaymentMethod   domain.PaymentMethod
	IdempotencyKey  string
}

// CreateOrder issues exactly one order creation request. It never retries.
func (c *Client) CreateOrder(ctx context.Context, in CreateOrderInput) (*domain.Order, error) {
	body := createOrderRequest{
		ShippingAddress: in.ShippingAddress,
		PaymentMethod:   string(in.PaymentMethod),
	}
	headers := http.Header{}
	if in.IdempotencyKey != "" {
		headers.Set(idempotencyKeyHeader, in.IdempotencyKey)
	}
	var out orderResponse
	if err := c.do(ctx, "create order", http.MethodPost, "/orders", nil, body, &out, headers); err != nil {
		return nil, err
	}
	return out.toDomain(in.ShippingAddress), nil
}

// GetOrder reads an order back after submission.
func (c *Client) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	var out orderResponse
	if err := c.do(ctx, "get order", http.MethodGet, "/orders/"+url.PathEscape(id), nil, nil, &out); err != nil {
		var te *domain.TransportError
		if errors.As(err, &te) && te.StatusCode == http.StatusNotFound {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return out.toDomain(out.ShippingAddress), nil
}

// CreatePaymentOrder creates the gateway order for an existing internal order.
func (c *Client) CreatePaymentOrder(ctx context.Context, orderID string, amount float64) (*domain.PaymentIntent, error) {
	body := createPaymentOrderRequest{OrderID: orderID, Amount: amount}
	var out paymentIntentResponse
	if err := c.do(ctx, "create payment order", http.MethodPost, "/payments/create-order", nil, body, &out); err != nil {
		return nil, err
	}
	if out.GatewayOrderID == "" {
		return nil, &domain.TransportError{Op: "create payment order", StatusCode: http.StatusOK, Err: errors.New("response missing gateway order id")}
	}
	return &domain.PaymentIntent{
		GatewayOrderID: out.GatewayOrderID,
		Amount:         float64(out.Amount),
		Currency:       out.Currency,
		KeyID:          out.KeyID,
		PaymentID:      string(out.PaymentID),
	}, nil
}

// VerifyPayment asks the backend to check the gateway signature for orderID.
func (c *Client) VerifyPayment(ctx context.Context, orderID string, payment domain.GatewayPayment) (*domain.VerificationResult, error) {
	body := verifyPaymentRequest{
		GatewayOrderID:   payment.GatewayOrderID,
		GatewayPaymentID: payment.GatewayPaymentID,
		Signature:        payment.Signature,
		OrderID:          orderID,
	}
	var out domain.VerificationResult
	if err := c.do(ctx, "verify payment", http.MethodPost, "/payments/verify", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out interface{}, headers ...http.Header) error {
	if c.baseURL == "" {
		return &domain.TransportError{Op: op, Err: errors.New("backend client not configured: base URL required")}
	}
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return &domain.TransportError{Op: op, Err: err}
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return &domain.TransportError{Op: op, Err: fmt.Errorf("encode request: %w", err)}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return &domain.TransportError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for _, h := range headers {
		for k, vs := range h {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("backend request failed", zap.String("op", op), zap.String("path", path), zap.Error(err))
		return &domain.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := extractMessage(raw)
		c.logger.Info("backend rejected request",
			zap.String("op", op),
			zap.Int("status", resp.StatusCode),
			zap.String("message", msg),
		)
		return &domain.TransportError{Op: op, StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return &domain.TransportError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// extractMessage pulls a human readable reason out of common error body shapes.
func extractMessage(raw []byte) string {
	if len(bytes.TrimSpace(raw)) == 0 {
		return ""
	}
	var body map[string]interface{}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	for _, key := range []string{"message", "error", "detail"} {
		switch v := body[key].(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
		case []interface{}:
			for _, item := range v {
				if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
					return strings.TrimSpace(s)
				}
			}
		}
	}
	return ""
}
