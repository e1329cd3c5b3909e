package payment

import (
	"context"
	"errors"
	"sync"

	"marketplace-checkout/internal/domain"
)

// WidgetPrefill is shown pre-filled inside the hosted widget.
type WidgetPrefill struct {
	Name    string `json:"name"`
	Contact string `json:"contact"`
}

type WidgetTheme struct {
	Color string `json:"color,omitempty"`
}

// WidgetOptions is everything the browser needs to open the hosted widget.
type WidgetOptions struct {
	ScriptURL   string        `json:"script_url"`
	Key         string        `json:"key"`
	Amount      float64       `json:"amount"`
	Currency    string        `json:"currency"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	OrderID     string        `json:"order_id"`
	Prefill     WidgetPrefill `json:"prefill"`
	Theme       WidgetTheme   `json:"theme"`
}

type OutcomeKind string

const (
	OutcomePaid      OutcomeKind = "paid"
	OutcomeDismissed OutcomeKind = "dismissed"
)

// Outcome is what the user did with an open widget.
type Outcome struct {
	Kind    OutcomeKind
	Payment domain.GatewayPayment
}

// Paid builds a success outcome from the ids the widget handed back.
func Paid(p domain.GatewayPayment) Outcome {
	return Outcome{Kind: OutcomePaid, Payment: p}
}

// Dismissed builds the outcome for a widget closed without paying.
func Dismissed() Outcome {
	return Outcome{Kind: OutcomeDismissed}
}

// ErrWidgetClosed is returned when a widget is delivered to after it resolved.
var ErrWidgetClosed = errors.New("payment widget already resolved")

// Future holds the single outcome of one opened widget. Only the first
// Resolve counts.
type Future struct {
	once    sync.Once
	done    chan struct{}
	outcome Outcome
}

func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Resolve records o and reports whether it was the first outcome.
func (f *Future) Resolve(o Outcome) bool {
	first := false
	f.once.Do(func() {
		f.outcome = o
		close(f.done)
		first = true
	})
	return first
}

// Wait blocks until the widget resolves or ctx is done.
func (f *Future) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-f.done:
		return f.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// HostedWidget opens the gateway's payment UI.
type HostedWidget interface {
	Open(ctx context.Context, opts WidgetOptions) (*Future, error)
}

// CallbackWidget opens widgets in the browser and receives their outcome
// through Deliver, keyed by gateway order id.
type CallbackWidget struct {
	mu      sync.Mutex
	pending map[string]*Future
}

func NewCallbackWidget() *CallbackWidget {
	return &CallbackWidget{pending: make(map[string]*Future)}
}

func (w *CallbackWidget) Open(_ context.Context, opts WidgetOptions) (*Future, error) {
	if opts.OrderID == "" {
		return nil, errors.New("widget options missing gateway order id")
	}
	f := NewFuture()
	w.mu.Lock()
	w.pending[opts.OrderID] = f
	w.mu.Unlock()
	return f, nil
}

// Deliver resolves the widget opened for gatewayOrderID.
func (w *CallbackWidget) Deliver(gatewayOrderID string, o Outcome) error {
	w.mu.Lock()
	f, ok := w.pending[gatewayOrderID]
	if ok {
		delete(w.pending, gatewayOrderID)
	}
	w.mu.Unlock()
	if !ok || !f.Resolve(o) {
		return ErrWidgetClosed
	}
	return nil
}

// Forget drops a widget that will never be resolved.
func (w *CallbackWidget) Forget(gatewayOrderID string) {
	w.mu.Lock()
	delete(w.pending, gatewayOrderID)
	w.mu.Unlock()
}

// Pending reports how many widgets are waiting for an outcome.
func (w *CallbackWidget) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}
