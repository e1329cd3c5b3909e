package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"marketplace-checkout/internal/domain"
	"marketplace-checkout/internal/service/address"
	"marketplace-checkout/internal/service/order"
	"marketplace-checkout/internal/service/payment"
	"marketplace-checkout/internal/service/serviceability"
)

// ErrNoPendingPayment is returned when a widget outcome arrives with no widget open.
var ErrNoPendingPayment = errors.New("no payment awaiting the customer")

// Session is the checkout screen state for one customer. All mutations go
// through its methods, which serialise on mu.
type Session struct {
	ID string

	owner      string
	backend    Backend
	checker    *serviceability.Checker
	form       *address.Form
	submitter  *order.Submitter
	payments   *payment.Coordinator
	widget     Widget
	historyURL string
	logger     *zap.Logger

	lifetime context.Context
	cancel   context.CancelFunc

	mu       sync.Mutex
	cart     domain.Cart
	loading  bool
	notice   domain.Notice
	order    *domain.Order
	attempt  *payment.Attempt
	settled  chan struct{}
	redirect string
	lastSeen time.Time
}

// View is what the checkout screen renders.
type View struct {
	ID             string                 `json:"id"`
	Cart           domain.Cart            `json:"cart"`
	Total          float64                `json:"total"`
	Address        domain.ShippingAddress `json:"shipping_address"`
	Serviceability serviceability.State   `json:"serviceability"`
	Submit         address.SubmitControl  `json:"submit"`
	Loading        bool                   `json:"loading"`
	Notice         *domain.Notice         `json:"notice,omitempty"`
	Order          *domain.Order          `json:"order,omitempty"`
	Payment        *payment.Snapshot      `json:"payment,omitempty"`
	Redirect       string                 `json:"redirect,omitempty"`
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Session) viewLocked() View {
	v := View{
		ID:             s.ID,
		Cart:           s.cart,
		Total:          s.cart.DisplayTotal(),
		Address:        s.form.Address(),
		Serviceability: s.form.Serviceability(),
		Submit:         s.form.SubmitControl(s.loading),
		Loading:        s.loading,
		Redirect:       s.redirect,
	}
	if v.Cart.Items == nil {
		v.Cart.Items = []domain.CartItem{}
	}
	if !s.notice.IsZero() {
		n := s.notice
		v.Notice = &n
	}
	if s.order != nil {
		o := *s.order
		v.Order = &o
	}
	if s.attempt != nil {
		snap := s.attempt.Snapshot()
		v.Payment = &snap
	}
	return v
}

// SetAddress applies field edits as one change. Edits are refused while an order is being placed.
func (s *Session) SetAddress(fields map[string]string) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loading {
		return s.viewLocked(), domain.ErrBusy
	}
	if err := s.form.Apply(fields); err != nil {
		return s.viewLocked(), err
	}
	return s.viewLocked(), nil
}

// PlaceOrder validates the address, creates exactly one order and starts
// payment for it. Presses while a placement is running get ErrBusy.
func (s *Session) PlaceOrder(ctx context.Context, method domain.PaymentMethod) (View, error) {
	s.mu.Lock()
	if s.loading {
		defer s.mu.Unlock()
		return s.viewLocked(), domain.ErrBusy
	}
	if s.cart.Empty() {
		defer s.mu.Unlock()
		return s.viewLocked(), domain.ErrEmptyCart
	}
	addr, err := s.form.Validate()
	if err != nil {
		defer s.mu.Unlock()
		s.notice = domain.ErrorNotice(err.Error())
		return s.viewLocked(), err
	}
	s.loading = true
	s.notice = domain.Notice{}
	s.mu.Unlock()

	placed, err := s.submitter.Submit(ctx, addr, method)
	if err != nil {
		return s.fail(domain.ErrorNotice(order.UserMessage(err)), err)
	}

	s.mu.Lock()
	s.order = placed
	s.mu.Unlock()

	if method == domain.PaymentMethodGateway && placed.TotalAmount <= 0 {
		if err := s.readBackTotal(ctx, placed); err != nil {
			return s.fail(domain.ErrorNotice(payment.IntentFailedMessage), err)
		}
	}

	attempt, err := s.payments.Start(ctx, payment.Request{
		OrderID:  placed.ID,
		Amount:   placed.TotalAmount,
		Method:   method,
		Customer: payment.WidgetPrefill{Name: addr.FullName, Contact: addr.Phone},
	})

	s.mu.Lock()
	s.attempt = attempt
	s.mu.Unlock()

	if err != nil {
		return s.fail(attempt.Notice(), err)
	}
	if attempt.State() == payment.StateComplete {
		s.complete(ctx, attempt)
		return s.View(), nil
	}

	settled := make(chan struct{})
	s.mu.Lock()
	s.settled = settled
	s.mu.Unlock()
	go s.await(attempt, settled)
	return s.View(), nil
}

// readBackTotal fills in the amount to charge from the backend's copy of the
// order. The cart's display total is never charged.
func (s *Session) readBackTotal(ctx context.Context, placed *domain.Order) error {
	o, err := s.backend.GetOrder(ctx, placed.ID)
	if err != nil {
		return fmt.Errorf("read order %s total: %w", placed.ID, err)
	}
	if o.TotalAmount <= 0 {
		return &domain.TransportError{Op: "get order", Err: fmt.Errorf("order %s has no total", placed.ID)}
	}
	s.mu.Lock()
	placed.TotalAmount = o.TotalAmount
	s.mu.Unlock()
	return nil
}

// PaymentCallback hands the widget's success ids to the open attempt and
// waits for verification to settle.
func (s *Session) PaymentCallback(ctx context.Context, p domain.GatewayPayment) (View, error) {
	return s.deliver(ctx, payment.Paid(p))
}

// DismissPayment reports that the customer closed the widget.
func (s *Session) DismissPayment(ctx context.Context) (View, error) {
	return s.deliver(ctx, payment.Dismissed())
}

func (s *Session) deliver(ctx context.Context, o payment.Outcome) (View, error) {
	s.mu.Lock()
	attempt, settled := s.attempt, s.settled
	s.mu.Unlock()
	if attempt == nil || settled == nil || attempt.State() != payment.StateAwaitingUser {
		return s.View(), ErrNoPendingPayment
	}

	if err := s.widget.Deliver(attempt.GatewayOrderID(), o); err != nil {
		if errors.Is(err, payment.ErrWidgetClosed) {
			return s.View(), ErrNoPendingPayment
		}
		return s.View(), err
	}

	select {
	case <-settled:
	case <-ctx.Done():
		return s.View(), ctx.Err()
	}
	return s.View(), attempt.Err()
}

func (s *Session) await(attempt *payment.Attempt, settled chan struct{}) {
	defer close(settled)
	if err := s.payments.Await(s.lifetime, attempt); err != nil {
		s.fail(attempt.Notice(), err)
		return
	}
	s.complete(s.lifetime, attempt)
}

// complete runs once payment is settled: the order is placed, so the
// cart is cleared and the customer is sent to order history.
func (s *Session) complete(ctx context.Context, attempt *payment.Attempt) {
	if err := s.backend.ClearCart(ctx); err != nil {
		s.logger.Warn("clear cart after order", zap.String("session_id", s.ID), zap.Error(err))
	}

	s.mu.Lock()
	orderID := ""
	if s.order != nil {
		orderID = s.order.ID
	}
	s.mu.Unlock()

	var refreshed *domain.Order
	if orderID != "" && attempt.Method == domain.PaymentMethodGateway {
		o, err := s.backend.GetOrder(ctx, orderID)
		if err != nil {
			s.logger.Warn("refresh order after payment", zap.String("order_id", orderID), zap.Error(err))
		} else {
			refreshed = o
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if refreshed != nil && s.order != nil {
		if refreshed.ShippingAddress == (domain.ShippingAddress{}) {
			refreshed.ShippingAddress = s.order.ShippingAddress
		}
		if refreshed.TotalAmount == 0 {
			refreshed.TotalAmount = s.order.TotalAmount
		}
		s.order = refreshed
	}
	s.cart = domain.Cart{Items: []domain.CartItem{}}
	s.loading = false
	s.notice = attempt.Notice()
	s.redirect = s.historyURL
	s.logger.Info("checkout completed",
		zap.String("session_id", s.ID),
		zap.String("order_id", orderID),
		zap.String("payment_method", string(attempt.Method)),
	)
}

func (s *Session) fail(notice domain.Notice, err error) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	s.notice = notice
	s.logger.Info("checkout attempt ended", zap.String("session_id", s.ID), zap.String("notice", notice.Message), zap.Error(err))
	return s.viewLocked(), err
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) close() {
	s.cancel()
	s.checker.Close()
}
