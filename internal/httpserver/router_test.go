package httpserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"marketplace-checkout/internal/backend"
	"marketplace-checkout/internal/domain"
	"marketplace-checkout/internal/repository/attempt"
	"marketplace-checkout/internal/service/checkout"
	"marketplace-checkout/internal/service/payment"
)

type stubBackend struct {
	mu          sync.Mutex
	cart        *domain.Cart
	serviceable bool
	verifyOK    bool
	createCalls int
	clearCalls  int
	verifyCalls []string
}

func newStubBackend() *stubBackend {
	return &stubBackend{
		cart:        &domain.Cart{Items: []domain.CartItem{{ProductID: "p1", Quantity: 2, UnitPrice: 500}}},
		serviceable: true,
		verifyOK:    true,
	}
}

func (b *stubBackend) GetCart(context.Context) (*domain.Cart, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := *b.cart
	return &c, nil
}

func (b *stubBackend) ClearCart(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clearCalls++
	return nil
}

func (b *stubBackend) GetDefaultAddress(context.Context) (*domain.ShippingAddress, error) {
	return nil, domain.ErrNotFound
}

func (b *stubBackend) CheckServiceability(_ context.Context, postalCode string) (domain.ServiceabilityResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return domain.ServiceabilityResult{PostalCode: postalCode, Serviceable: b.serviceable}, nil
}

func (b *stubBackend) CreateOrder(_ context.Context, in backend.CreateOrderInput) (*domain.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.createCalls++
	return &domain.Order{ID: "42", TotalAmount: 1000, Status: domain.OrderStatusPending, ShippingAddress: in.ShippingAddress}, nil
}

func (b *stubBackend) GetOrder(_ context.Context, id string) (*domain.Order, error) {
	return &domain.Order{ID: id, Status: domain.OrderStatusPaid}, nil
}

func (b *stubBackend) CreatePaymentOrder(_ context.Context, orderID string, amount float64) (*domain.PaymentIntent, error) {
	return &domain.PaymentIntent{GatewayOrderID: "order_gw_" + orderID, Amount: amount * 100, Currency: "INR", KeyID: "rzp_test"}, nil
}

func (b *stubBackend) VerifyPayment(_ context.Context, orderID string, _ domain.GatewayPayment) (*domain.VerificationResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.verifyCalls = append(b.verifyCalls, orderID)
	return &domain.VerificationResult{Success: b.verifyOK}, nil
}

type okLoader struct{}

func (okLoader) Load(context.Context, string) error { return nil }

type stubLedger struct {
	events     []domain.PaymentEvent
	unverified []attempt.Unverified
	err        error
}

func (s *stubLedger) ListByOrder(context.Context, string) ([]domain.PaymentEvent, error) {
	return s.events, s.err
}

func (s *stubLedger) ListUnverified(context.Context, int) ([]attempt.Unverified, error) {
	return s.unverified, s.err
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func newCheckoutService(b *stubBackend) *checkout.Service {
	return checkout.NewService(func(string) checkout.Backend { return b }, checkout.Options{
		Country:  "IN",
		Debounce: time.Millisecond,
		Loader:   okLoader{},
		Payment:  payment.Settings{ScriptURL: "https://checkout.example/v1.js"},
	})
}

func testRouter(t *testing.T, deps Deps) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if deps.Checkout == nil {
		deps.Checkout = newCheckoutService(newStubBackend())
	}
	router, err := buildRouter(zap.NewNop(), deps)
	if err != nil {
		t.Fatalf("build router: %v", err)
	}
	return router
}

func do(router http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestBuildRouter_RequiresCheckout(t *testing.T) {
	if _, err := buildRouter(nil, Deps{}); err == nil {
		t.Fatalf("expected error without checkout service")
	}
}

func TestHealthz(t *testing.T) {
	router := testRouter(t, Deps{})
	rec := do(router, http.MethodGet, "/healthz", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestReadyz(t *testing.T) {
	router := testRouter(t, Deps{Ready: map[string]Pinger{"db": stubPinger{}, "redis": nil}})
	if rec := do(router, http.MethodGet, "/readyz", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	router = testRouter(t, Deps{Ready: map[string]Pinger{"db": stubPinger{err: errors.New("down")}}})
	rec := do(router, http.MethodGet, "/readyz", "", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "db not reachable") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestCheckoutRoutes_RequireBearerToken(t *testing.T) {
	router := testRouter(t, Deps{})
	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/checkout/sessions"},
		{http.MethodGet, "/checkout/sessions/abc"},
		{http.MethodPost, "/checkout/sessions/abc/orders"},
	} {
		rec := do(router, tc.method, tc.path, "", "")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401, got %d", tc.method, tc.path, rec.Code)
		}
	}
}

func TestParseBearer(t *testing.T) {
	cases := map[string]struct {
		token string
		ok    bool
	}{
		"Bearer abc":   {"abc", true},
		"bearer  abc ": {"abc", true},
		"Basic abc":    {"", false},
		"Bearer ":      {"", false},
		"":             {"", false},
	}
	for header, want := range cases {
		got, ok := parseBearer(header)
		if got != want.token || ok != want.ok {
			t.Fatalf("parseBearer(%q) = %q, %v; want %q, %v", header, got, ok, want.token, want.ok)
		}
	}
}

func TestCORS_AllowsConfiguredOrigin(t *testing.T) {
	router := testRouter(t, Deps{AllowedOrigins: []string{"https://shop.test"}})
	req := httptest.NewRequest(http.MethodOptions, "/checkout/sessions", nil)
	req.Header.Set("Origin", "https://shop.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://shop.test" {
		t.Fatalf("expected allowed origin header, got %q", got)
	}
}

func TestSupportRoutes(t *testing.T) {
	ledger := &stubLedger{
		events:     []domain.PaymentEvent{{AttemptID: "a1", OrderID: "42", ToState: "failed"}},
		unverified: []attempt.Unverified{{AttemptID: "a1", OrderID: "42", GatewayPaymentID: "pay_1"}},
	}
	router := testRouter(t, Deps{Ledger: ledger, InternalToken: "support"})

	if rec := do(router, http.MethodGet, "/internal/payments/unverified", "wrong", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	rec := do(router, http.MethodGet, "/internal/orders/42/payment-events", "support", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"to_state":"failed"`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}

	rec = do(router, http.MethodGet, "/internal/payments/unverified?limit=10", "support", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"gateway_payment_id":"pay_1"`) {
		t.Fatalf("unexpected response %d: %s", rec.Code, rec.Body.String())
	}

	if rec := do(router, http.MethodGet, "/internal/payments/unverified?limit=0", "support", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestSupportRoutes_DisabledWithoutToken(t *testing.T) {
	router := testRouter(t, Deps{Ledger: &stubLedger{}})
	if rec := do(router, http.MethodGet, "/internal/payments/unverified", "anything", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.MissingField("city"), http.StatusUnprocessableEntity},
		{fmt.Errorf("place order: %w", domain.MissingField("phone")), http.StatusUnprocessableEntity},
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrBusy, http.StatusConflict},
		{checkout.ErrNoPendingPayment, http.StatusConflict},
		{&domain.TransportError{Op: "get cart", StatusCode: http.StatusUnauthorized}, http.StatusUnauthorized},
		{&domain.TransportError{Op: "create order", StatusCode: http.StatusBadRequest, Message: "nope"}, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.want {
			t.Fatalf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
