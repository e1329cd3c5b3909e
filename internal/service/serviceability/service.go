package serviceability

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"marketplace-checkout/internal/cache"
	"marketplace-checkout/internal/domain"
	"marketplace-checkout/internal/logging"
)

// UnverifiedMessage is shown when the lookup itself failed. The destination is treated as not serviceable.
const UnverifiedMessage = "Unable to verify delivery to this pincode. Please try again."

// DefaultDebounce is the quiet period after the last edit before a lookup runs.
const DefaultDebounce = 500 * time.Millisecond

type lookup interface {
	CheckServiceability(ctx context.Context, postalCode string) (domain.ServiceabilityResult, error)
}

// Timer is the part of *time.Timer the checker needs.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. time.AfterFunc satisfies it.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// State is a point-in-time view of the checker.
type State struct {
	Result   domain.ServiceabilityResult `json:"result"`
	Checking bool                        `json:"checking"`
}

// Options configure a Checker. Zero values pick defaults.
type Options struct {
	Debounce time.Duration
	// Timeout bounds a single lookup.
	Timeout   time.Duration
	Cache     cache.ServiceabilityCache
	AfterFunc AfterFunc
	Logger    *zap.Logger
}

// Checker runs a trailing-debounced deliverability lookup for the postal code being typed.
// Only the answer for the latest input is ever applied.
type Checker struct {
	lookup    lookup
	cache     cache.ServiceabilityCache
	debounce  time.Duration
	timeout   time.Duration
	afterFunc AfterFunc
	logger    *zap.Logger

	mu         sync.Mutex
	generation uint64
	postalCode string
	result     domain.ServiceabilityResult
	checking   bool
	pending    Timer
	cancel     context.CancelFunc
	closed     bool
}

func New(l lookup, opts Options) *Checker {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.AfterFunc == nil {
		opts.AfterFunc = realAfterFunc
	}
	return &Checker{
		lookup:    l,
		cache:     opts.Cache,
		debounce:  opts.Debounce,
		timeout:   opts.Timeout,
		afterFunc: opts.AfterFunc,
		logger:    logging.OrNop(opts.Logger),
		result:    domain.ServiceabilityResult{Serviceable: true},
	}
}

// Update records a new postal code value and schedules a lookup for it.
// Any pending or running lookup for an earlier value is superseded.
func (c *Checker) Update(postalCode string) {
	postalCode = strings.TrimSpace(postalCode)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.supersedeLocked()
	c.postalCode = postalCode

	if len(postalCode) < domain.MinPostalCodeLength {
		c.result = domain.ServiceabilityResult{PostalCode: postalCode, Serviceable: true}
		c.checking = false
		return
	}

	c.result = domain.ServiceabilityResult{PostalCode: postalCode}
	c.checking = true
	gen := c.generation
	c.pending = c.afterFunc(c.debounce, func() { c.run(gen, postalCode) })
}

// State returns the latest result together with the in-flight flag.
func (c *Checker) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{Result: c.result, Checking: c.checking}
}

// Checking reports whether a lookup for the current value is scheduled or running.
func (c *Checker) Checking() bool {
	return c.State().Checking
}

// Close cancels pending work. Later updates are ignored.
func (c *Checker) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.supersedeLocked()
	c.checking = false
	c.closed = true
}

func (c *Checker) supersedeLocked() {
	c.generation++
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *Checker) run(gen uint64, postalCode string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return
	}
	c.pending = nil
	c.cancel = cancel
	c.mu.Unlock()

	res := c.resolve(ctx, postalCode)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		c.logger.Debug("discarding superseded serviceability result", zap.String("postal_code", postalCode))
		return
	}
	c.cancel = nil
	c.result = res
	c.checking = false
}

func (c *Checker) resolve(ctx context.Context, postalCode string) domain.ServiceabilityResult {
	if c.cache != nil {
		cached, err := c.cache.Get(ctx, postalCode)
		switch {
		case err == nil:
			return *cached
		case !errors.Is(err, cache.ErrCacheMiss):
			c.logger.Warn("serviceability cache read failed", zap.String("postal_code", postalCode), zap.Error(err))
		}
	}

	res, err := c.lookup.CheckServiceability(ctx, postalCode)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			c.logger.Warn("serviceability lookup failed", zap.String("postal_code", postalCode), zap.Error(err))
		}
		return domain.ServiceabilityResult{PostalCode: postalCode, Serviceable: false, Message: UnverifiedMessage}
	}

	res.PostalCode = postalCode
	if strings.TrimSpace(res.Message) == "" {
		res.Message = defaultMessage(res)
	}
	if c.cache != nil {
		if err := c.cache.Set(ctx, res); err != nil {
			c.logger.Warn("serviceability cache write failed", zap.String("postal_code", postalCode), zap.Error(err))
		}
	}
	return res
}

func defaultMessage(res domain.ServiceabilityResult) string {
	if res.Serviceable {
		return fmt.Sprintf("Delivery available to %s", res.PostalCode)
	}
	return fmt.Sprintf("Sorry, we do not deliver to %s yet", res.PostalCode)
}
