package payment

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"marketplace-checkout/internal/logging"
)

// Loader makes the gateway script available before the widget is opened.
type Loader interface {
	Load(ctx context.Context, url string) error
}

// ScriptLoader fetches a resource once and remembers that it succeeded.
// Concurrent callers for the same url share one fetch. Failures are not
// remembered so a later attempt can recover.
type ScriptLoader struct {
	client *http.Client
	group  singleflight.Group
	logger *zap.Logger

	mu     sync.RWMutex
	loaded map[string]struct{}
}

func NewScriptLoader(timeout time.Duration, logger *zap.Logger) *ScriptLoader {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ScriptLoader{
		client: &http.Client{Timeout: timeout},
		logger: logging.OrNop(logger),
		loaded: make(map[string]struct{}),
	}
}

func (l *ScriptLoader) Load(ctx context.Context, url string) error {
	if l.isLoaded(url) {
		return nil
	}
	_, err, shared := l.group.Do(url, func() (interface{}, error) {
		if l.isLoaded(url) {
			return nil, nil
		}
		if err := l.fetch(ctx, url); err != nil {
			return nil, err
		}
		l.mu.Lock()
		l.loaded[url] = struct{}{}
		l.mu.Unlock()
		l.logger.Info("gateway script loaded", zap.String("url", url))
		return nil, nil
	})
	if err != nil {
		l.logger.Warn("gateway script load failed", zap.String("url", url), zap.Bool("shared", shared), zap.Error(err))
	}
	return err
}

// Loaded reports whether url has been fetched successfully.
func (l *ScriptLoader) Loaded(url string) bool {
	return l.isLoaded(url)
}

func (l *ScriptLoader) isLoaded(url string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.loaded[url]
	return ok
}

func (l *ScriptLoader) fetch(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	n, err := io.Copy(io.Discard, resp.Body)
	if err != nil {
		return fmt.Errorf("read %s: %w", url, err)
	}
	if n == 0 {
		return fmt.Errorf("fetch %s: empty body", url)
	}
	return nil
}
