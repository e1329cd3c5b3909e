package checkout

import (
	"context"
	"crypto/subtle"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"marketplace-checkout/internal/backend"
	"marketplace-checkout/internal/cache"
	"marketplace-checkout/internal/domain"
	"marketplace-checkout/internal/logging"
	"marketplace-checkout/internal/service/address"
	"marketplace-checkout/internal/service/order"
	"marketplace-checkout/internal/service/payment"
	"marketplace-checkout/internal/service/serviceability"
)

// Backend is the slice of the commerce API one checkout session uses.
type Backend interface {
	GetCart(ctx context.Context) (*domain.Cart, error)
	ClearCart(ctx context.Context) error
	GetDefaultAddress(ctx context.Context) (*domain.ShippingAddress, error)
	CheckServiceability(ctx context.Context, postalCode string) (domain.ServiceabilityResult, error)
	CreateOrder(ctx context.Context, in backend.CreateOrderInput) (*domain.Order, error)
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	CreatePaymentOrder(ctx context.Context, orderID string, amount float64) (*domain.PaymentIntent, error)
	VerifyPayment(ctx context.Context, orderID string, p domain.GatewayPayment) (*domain.VerificationResult, error)
}

// Connector returns a backend authenticated as the owner of token.
type Connector func(token string) Backend

// Widget opens hosted payment widgets and receives their outcomes.
type Widget interface {
	payment.HostedWidget
	Deliver(gatewayOrderID string, o payment.Outcome) error
}

// Options configure the checkout service. Zero values pick defaults.
type Options struct {
	Country         string
	SessionTTL      time.Duration
	OrderHistoryURL string

	Debounce     time.Duration
	CheckTimeout time.Duration
	Cache        cache.ServiceabilityCache
	AfterFunc    serviceability.AfterFunc

	Payment  payment.Settings
	Loader   payment.Loader
	Widget   Widget
	Recorder payment.Recorder

	Logger *zap.Logger
	Now    func() time.Time
}

// Service owns the live checkout sessions.
type Service struct {
	connect Connector
	opts    Options
	logger  *zap.Logger
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewService(connect Connector, opts Options) *Service {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 30 * time.Minute
	}
	if opts.OrderHistoryURL == "" {
		opts.OrderHistoryURL = "/orders"
	}
	if opts.Widget == nil {
		opts.Widget = payment.NewCallbackWidget()
	}
	if opts.Loader == nil {
		opts.Loader = payment.NewScriptLoader(0, opts.Logger)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		connect:  connect,
		opts:     opts,
		logger:   logging.OrNop(opts.Logger),
		now:      now,
		sessions: make(map[string]*Session),
	}
}

// Open starts checkout for the customer behind token. The cart and the
// saved address are fetched together; an empty cart yields ErrEmptyCart.
func (s *Service) Open(ctx context.Context, token string) (*Session, error) {
	b := s.connect(token)

	var (
		cart    *domain.Cart
		prefill *domain.ShippingAddress
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := b.GetCart(gctx)
		if err != nil {
			return err
		}
		cart = c
		return nil
	})
	g.Go(func() error {
		a, err := b.GetDefaultAddress(gctx)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) && !errors.Is(err, context.Canceled) {
				s.logger.Warn("load default address", zap.Error(err))
			}
			return nil
		}
		prefill = a
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if cart == nil || cart.Empty() {
		return nil, domain.ErrEmptyCart
	}

	id := uuid.NewString()
	logger := s.logger.With(zap.String("session_id", id))
	checker := serviceability.New(b, serviceability.Options{
		Debounce:  s.opts.Debounce,
		Timeout:   s.opts.CheckTimeout,
		Cache:     s.opts.Cache,
		AfterFunc: s.opts.AfterFunc,
		Logger:    logger,
	})
	lifetime, cancel := context.WithCancel(context.Background())
	sess := &Session{
		ID:        id,
		owner:     token,
		backend:   b,
		checker:   checker,
		form:      address.NewForm(checker, s.opts.Country),
		submitter: order.NewSubmitter(b, logger),
		payments: payment.NewCoordinator(payment.Deps{
			Backend:  b,
			Loader:   s.opts.Loader,
			Widget:   s.opts.Widget,
			Recorder: s.opts.Recorder,
			Logger:   logger,
		}, s.opts.Payment),
		widget:     s.opts.Widget,
		historyURL: s.opts.OrderHistoryURL,
		logger:     logger,
		lifetime:   lifetime,
		cancel:     cancel,
		cart:       *cart,
		lastSeen:   s.now(),
	}
	if prefill != nil {
		sess.form.Prefill(*prefill)
	}

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()
	logger.Info("checkout opened", zap.Int("items", len(cart.Items)), zap.Bool("prefilled", prefill != nil))
	return sess, nil
}

// Get returns a live session owned by token and marks it as recently used.
// Sessions of other customers are reported as not found.
func (s *Service) Get(id, token string) (*Session, error) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok || subtle.ConstantTimeCompare([]byte(sess.owner), []byte(token)) != 1 {
		return nil, domain.ErrNotFound
	}
	now := s.now()
	if now.Sub(sess.idleSince()) > s.opts.SessionTTL {
		s.remove(id)
		return nil, domain.ErrNotFound
	}
	sess.touch(now)
	return sess, nil
}

// Close ends a session. Unknown ids are ignored.
func (s *Service) Close(id string) {
	s.remove(id)
}

// Len reports the number of live sessions.
func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep closes sessions idle for longer than the session TTL.
func (s *Service) Sweep() int {
	now := s.now()
	var expired []string
	s.mu.Lock()
	for id, sess := range s.sessions {
		if now.Sub(sess.idleSince()) > s.opts.SessionTTL {
			expired = append(expired, id)
		}
	}
	s.mu.Unlock()
	for _, id := range expired {
		s.remove(id)
	}
	if len(expired) > 0 {
		s.logger.Info("expired checkout sessions", zap.Int("count", len(expired)))
	}
	return len(expired)
}

// Run sweeps expired sessions until ctx is done, then closes the rest.
func (s *Service) Run(ctx context.Context) {
	interval := s.opts.SessionTTL / 2
	if interval > time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.closeAll()
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

func (s *Service) remove(id string) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if ok {
		sess.close()
	}
}

func (s *Service) closeAll() {
	s.mu.Lock()
	all := s.sessions
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()
	for _, sess := range all {
		sess.close()
	}
}
