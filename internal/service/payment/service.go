package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"marketplace-checkout/internal/domain"
	"marketplace-checkout/internal/logging"
)

const (
	LoadFailedMessage   = "Failed to load payment gateway. Are you online?"
	IntentFailedMessage = "Unable to start payment. Please try again."
	CODPlacedMessage    = "Order placed successfully!"
	PaidMessage         = "Payment successful! Your order has been placed."
	CancelledMessage    = "Payment cancelled. Your order is saved and can be paid later."
	ExpiredMessage      = "Payment window expired. Your order is saved and can be paid later."

	supportMessage = "Payment verification failed. If money was deducted, please contact support with order ID %s."
)

var errGatewayOrderMismatch = errors.New("gateway order id does not match payment intent")

// SupportMessage is shown when a payment may have been captured but was not confirmed.
func SupportMessage(orderID string) string {
	return fmt.Sprintf(supportMessage, orderID)
}

type paymentBackend interface {
	CreatePaymentOrder(ctx context.Context, orderID string, amount float64) (*domain.PaymentIntent, error)
	VerifyPayment(ctx context.Context, orderID string, payment domain.GatewayPayment) (*domain.VerificationResult, error)
}

// Recorder keeps the history of attempt state changes.
type Recorder interface {
	Record(ctx context.Context, e domain.PaymentEvent) error
}

// Settings describe the merchant side of the hosted widget.
type Settings struct {
	ScriptURL    string
	MerchantName string
	Description  string
	ThemeColor   string
}

type Deps struct {
	Backend  paymentBackend
	Loader   Loader
	Widget   HostedWidget
	Recorder Recorder
	Logger   *zap.Logger
}

// Coordinator drives a placed order through payment collection.
type Coordinator struct {
	backend  paymentBackend
	loader   Loader
	widget   HostedWidget
	recorder Recorder
	settings Settings
	logger   *zap.Logger
	newID    func() string
}

func NewCoordinator(d Deps, s Settings) *Coordinator {
	if s.Description == "" {
		s.Description = "Order payment"
	}
	return &Coordinator{
		backend:  d.Backend,
		loader:   d.Loader,
		widget:   d.Widget,
		recorder: d.Recorder,
		settings: s,
		logger:   logging.OrNop(d.Logger),
		newID:    uuid.NewString,
	}
}

// Request is a freshly created order waiting for payment.
type Request struct {
	OrderID  string
	Amount   float64
	Method   domain.PaymentMethod
	Customer WidgetPrefill
}

// Start moves the attempt out of INIT. Cash on delivery completes at once.
// The gateway path stops in AWAITING_USER with the widget open, or in
// FAILED. The returned error mirrors a FAILED attempt.
func (c *Coordinator) Start(ctx context.Context, req Request) (*Attempt, error) {
	a := &Attempt{
		ID:      c.newID(),
		OrderID: req.OrderID,
		Method:  req.Method,
		state:   StateInit,
	}

	if req.Method != domain.PaymentMethodGateway {
		c.transition(ctx, a, StateComplete, domain.InfoNotice(CODPlacedMessage), nil)
		return a, nil
	}

	c.transition(ctx, a, StateLoadingSDK, domain.Notice{}, nil)
	if err := c.loader.Load(ctx, c.settings.ScriptURL); err != nil {
		gerr := &domain.GatewayError{Kind: domain.GatewayLoadFailed, Err: err}
		c.transition(ctx, a, StateFailed, domain.ErrorNotice(LoadFailedMessage), gerr)
		return a, gerr
	}

	intent, err := c.backend.CreatePaymentOrder(ctx, req.OrderID, req.Amount)
	if err != nil {
		msg := domain.BackendMessage(err)
		if msg == "" {
			msg = IntentFailedMessage
		}
		c.transition(ctx, a, StateFailed, domain.ErrorNotice(msg), err)
		return a, err
	}

	opts := WidgetOptions{
		ScriptURL:   c.settings.ScriptURL,
		Key:         intent.KeyID,
		Amount:      intent.Amount,
		Currency:    intent.Currency,
		Name:        c.settings.MerchantName,
		Description: c.settings.Description,
		OrderID:     intent.GatewayOrderID,
		Prefill:     req.Customer,
		Theme:       WidgetTheme{Color: c.settings.ThemeColor},
	}
	future, err := c.widget.Open(ctx, opts)
	if err != nil {
		gerr := &domain.GatewayError{Kind: domain.GatewayLoadFailed, Err: err}
		a.setIntent(intent, nil, nil)
		c.transition(ctx, a, StateFailed, domain.ErrorNotice(LoadFailedMessage), gerr)
		return a, gerr
	}
	a.setIntent(intent, &opts, future)
	c.transition(ctx, a, StateAwaitingUser, domain.Notice{}, nil)
	return a, nil
}

// Await blocks until the open widget resolves and then finishes the
// attempt. It returns the error of a FAILED or CANCELLED attempt.
func (c *Coordinator) Await(ctx context.Context, a *Attempt) error {
	if st := a.State(); st != StateAwaitingUser {
		if st.IsTerminal() {
			return a.Err()
		}
		return fmt.Errorf("attempt %s is %s, not awaiting the customer", a.ID, st)
	}

	outcome, err := a.future.Wait(ctx)
	if err != nil {
		if f, ok := c.widget.(interface{ Forget(string) }); ok {
			f.Forget(a.intent.GatewayOrderID)
		}
		c.transition(context.WithoutCancel(ctx), a, StateCancelled, domain.InfoNotice(ExpiredMessage), err)
		return err
	}

	switch outcome.Kind {
	case OutcomeDismissed:
		gerr := &domain.GatewayError{Kind: domain.GatewayDismissed}
		c.transition(ctx, a, StateCancelled, domain.InfoNotice(CancelledMessage), gerr)
		return gerr
	case OutcomePaid:
		return c.verify(ctx, a, outcome.Payment)
	}
	err = fmt.Errorf("unknown widget outcome %q", outcome.Kind)
	c.transition(ctx, a, StateFailed, domain.ErrorNotice(SupportMessage(a.OrderID)), err)
	return err
}

func (c *Coordinator) verify(ctx context.Context, a *Attempt, p domain.GatewayPayment) error {
	a.setPayment(p)
	if p.GatewayOrderID != a.intent.GatewayOrderID {
		merr := &domain.VerificationMismatchError{OrderID: a.OrderID, GatewayOrderID: p.GatewayOrderID, Err: errGatewayOrderMismatch}
		c.logger.Warn("gateway order mismatch",
			zap.String("order_id", a.OrderID),
			zap.String("expected", a.intent.GatewayOrderID),
			zap.String("got", p.GatewayOrderID),
		)
		c.transition(ctx, a, StateFailed, domain.ErrorNotice(SupportMessage(a.OrderID)), merr)
		return merr
	}

	c.transition(ctx, a, StateVerifying, domain.Notice{}, nil)
	result, err := c.backend.VerifyPayment(ctx, a.OrderID, p)
	if err == nil && (result == nil || !result.Success) {
		err = errors.New("backend rejected payment")
	}
	if err != nil {
		merr := &domain.VerificationMismatchError{OrderID: a.OrderID, GatewayOrderID: p.GatewayOrderID, Err: err}
		c.transition(ctx, a, StateFailed, domain.ErrorNotice(SupportMessage(a.OrderID)), merr)
		return merr
	}
	c.transition(ctx, a, StateComplete, domain.InfoNotice(PaidMessage), nil)
	return nil
}

func (c *Coordinator) transition(ctx context.Context, a *Attempt, next State, notice domain.Notice, cause error) {
	from, ok := a.advance(next, notice, cause)
	if !ok {
		c.logger.Error("illegal payment transition",
			zap.String("attempt_id", a.ID),
			zap.String("from", from.String()),
			zap.String("to", next.String()),
		)
		return
	}

	fields := []zap.Field{
		zap.String("attempt_id", a.ID),
		zap.String("order_id", a.OrderID),
		zap.String("from", from.String()),
		zap.String("to", next.String()),
	}
	if cause != nil {
		fields = append(fields, zap.Error(cause))
	}
	c.logger.Info("payment state changed", fields...)

	if c.recorder == nil {
		return
	}
	event := a.event(from, next, cause)
	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := c.recorder.Record(recCtx, event); err != nil {
		c.logger.Warn("record payment event", zap.String("attempt_id", a.ID), zap.Error(err))
	}
}

// Attempt is one run of the payment state machine for an order.
type Attempt struct {
	ID      string
	OrderID string
	Method  domain.PaymentMethod

	mu      sync.Mutex
	state   State
	intent  *domain.PaymentIntent
	widget  *WidgetOptions
	payment domain.GatewayPayment
	notice  domain.Notice
	err     error
	future  *Future
}

// Snapshot is a read-only view of an attempt.
type Snapshot struct {
	ID             string               `json:"id"`
	OrderID        string               `json:"order_id"`
	Method         domain.PaymentMethod `json:"payment_method"`
	State          State                `json:"state"`
	GatewayOrderID string               `json:"gateway_order_id,omitempty"`
	Widget         *WidgetOptions       `json:"widget,omitempty"`
	Notice         domain.Notice        `json:"notice"`
}

func (a *Attempt) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Attempt) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

func (a *Attempt) Notice() domain.Notice {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.notice
}

// GatewayOrderID is empty until the backend created a payment intent.
func (a *Attempt) GatewayOrderID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.intent == nil {
		return ""
	}
	return a.intent.GatewayOrderID
}

func (a *Attempt) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := Snapshot{
		ID:      a.ID,
		OrderID: a.OrderID,
		Method:  a.Method,
		State:   a.state,
		Notice:  a.notice,
	}
	if a.intent != nil {
		s.GatewayOrderID = a.intent.GatewayOrderID
	}
	if a.state == StateAwaitingUser && a.widget != nil {
		opts := *a.widget
		s.Widget = &opts
	}
	return s
}

func (a *Attempt) setIntent(intent *domain.PaymentIntent, opts *WidgetOptions, f *Future) {
	a.mu.Lock()
	a.intent = intent
	a.widget = opts
	a.future = f
	a.mu.Unlock()
}

func (a *Attempt) setPayment(p domain.GatewayPayment) {
	a.mu.Lock()
	a.payment = p
	a.mu.Unlock()
}

func (a *Attempt) advance(next State, notice domain.Notice, cause error) (State, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	from := a.state
	if !from.CanTransitionTo(next) {
		return from, false
	}
	a.state = next
	a.notice = notice
	a.err = cause
	return from, true
}

func (a *Attempt) event(from, to State, cause error) domain.PaymentEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	e := domain.PaymentEvent{
		AttemptID:        a.ID,
		OrderID:          a.OrderID,
		Method:           a.Method,
		FromState:        from.String(),
		ToState:          to.String(),
		GatewayPaymentID: a.payment.GatewayPaymentID,
	}
	if a.intent != nil {
		e.GatewayOrderID = a.intent.GatewayOrderID
	}
	if cause != nil {
		e.Detail = cause.Error()
	}
	return e
}
