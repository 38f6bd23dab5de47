// Package webhook delivers session lifecycle events to configured HTTP
// endpoints.
package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/retry"

	"github.com/tinygems/tinygems/internal/event"
	"github.com/tinygems/tinygems/internal/logging"
	"github.com/tinygems/tinygems/internal/version"
)

const (
	maxAttempts     = 3
	requestTimeout  = 10 * time.Second
	deliveryTimeout = 30 * time.Second
)

// Dispatcher sends events to matching webhooks.
type Dispatcher struct {
	hooks      []Webhook
	httpClient *http.Client
	logger     *slog.Logger
	retryDelay time.Duration

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher creates a webhook dispatcher for the given endpoints.
func NewDispatcher(hooks []Webhook, logger *slog.Logger) *Dispatcher {
	return NewDispatcherWithHTTPClient(hooks, &http.Client{Timeout: requestTimeout}, logger)
}

// NewDispatcherWithHTTPClient creates a dispatcher with a custom HTTP client (for testing).
func NewDispatcherWithHTTPClient(hooks []Webhook, httpClient *http.Client, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		hooks:      hooks,
		httpClient: httpClient,
		logger:     logger.With(slog.String("component", "webhook-dispatcher")),
		retryDelay: time.Second,
	}
}

// HandleEvent is an event.Handler that dispatches the event to all matching
// webhooks. Deliveries run in the background. Events arriving after Wait are
// dropped.
func (d *Dispatcher) HandleEvent(e event.Event) {
	if len(d.hooks) == 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		d.logger.Warn("dispatcher closed, dropping event", slog.String("event", string(e.Type)))
		return
	}
	for i := range d.hooks {
		w := d.hooks[i]
		if !w.Matches(e.Type) {
			continue
		}
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.deliver(w, e)
		}()
	}
}

// Wait stops accepting events and blocks until in-flight deliveries finish.
func (d *Dispatcher) Wait() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) deliver(w Webhook, e event.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	body, contentType := formatPayload(&w, e)
	log := d.logger.With(
		slog.String("webhook", w.Name),
		slog.String("event", string(e.Type)))

	attempts := 0
	err := retry.Do(
		func() error {
			attempts++
			return d.send(ctx, w.URL, body, contentType)
		},
		retry.Context(ctx),
		retry.Attempts(maxAttempts),
		retry.Delay(d.retryDelay),
		retry.OnRetry(func(n uint, err error) {
			log.Warn("webhook delivery failed",
				slog.Int("attempt", int(n)+1),
				slog.String("error", logging.Redact(err.Error())))
		}),
	)
	if err != nil {
		log.Error("webhook delivery exhausted retries",
			slog.Int("attempts", attempts),
			slog.String("error", logging.Redact(err.Error())))
		return
	}
	log.Debug("webhook delivered", slog.Int("attempt", attempts))
}

func (d *Dispatcher) send(ctx context.Context, url string, body []byte, contentType string) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := d.httpClient.Do(req) //nolint:gosec // URL comes from operator config
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
