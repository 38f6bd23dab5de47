package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/codeGROOVE-dev/retry"
)

// maxBodyBytes caps how much of a platform response is read into memory.
const maxBodyBytes = 2 * 1024 * 1024

// UserAgent is sent with every outbound platform request.
const UserAgent = "tinygems/1.0 (+https://tinygems.app)"

// statusError carries a non-2xx HTTP status between retry attempts.
type statusError struct {
	code       int
	retryAfter time.Duration
}

func (e *statusError) Error() string { return fmt.Sprintf("unexpected status %d", e.code) }

// Fetch executes a GET-style request against a platform API and returns the
// response body. Transient failures (network errors, 429, 5xx) are retried
// once with jitter. Failures are mapped to typed errors: 404 becomes
// *ErrNotFound, everything else *ErrPlatformUnavailable.
func Fetch(ctx context.Context, client *http.Client, req *http.Request, p Platform, logger *slog.Logger) ([]byte, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", UserAgent)
	}

	var lastErr error
	body, err := retry.DoWithData(
		func() ([]byte, error) {
			b, doErr := doOnce(client, req.WithContext(ctx))
			lastErr = doErr
			return b, doErr
		},
		retry.Context(ctx),
		retry.Attempts(2),
		retry.Delay(200*time.Millisecond),
		retry.MaxJitter(100*time.Millisecond),
		retry.RetryIf(isRetryable),
		retry.OnRetry(func(n uint, err error) {
			if logger != nil {
				logger.Debug("retrying platform request",
					slog.Int("attempt", int(n)+1),
					slog.String("path", req.URL.Path),
					slog.String("error", err.Error()))
			}
		}),
	)
	if err == nil {
		return body, nil
	}
	if lastErr == nil {
		lastErr = err
	}
	return nil, classify(p, req, lastErr)
}

// HTTPStatus returns the non-2xx status a Fetch error was caused by.
func HTTPStatus(err error) (int, bool) {
	var se *statusError
	if errors.As(err, &se) {
		return se.code, true
	}
	return 0, false
}

func doOnce(client *http.Client, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req) //nolint:gosec // URL built by the adapter from validated input
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &statusError{code: resp.StatusCode}
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, convErr := strconv.Atoi(v); convErr == nil {
				se.retryAfter = time.Duration(secs) * time.Second
			}
		}
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		return nil, se
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
}

func isRetryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		switch se.code {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		default:
			return false
		}
	}
	return !errors.Is(err, context.Canceled)
}

func classify(p Platform, req *http.Request, err error) error {
	var se *statusError
	if errors.As(err, &se) {
		switch se.code {
		case http.StatusNotFound:
			return &ErrNotFound{Platform: p, ID: req.URL.Path}
		case http.StatusUnauthorized, http.StatusForbidden:
			return &ErrPlatformUnavailable{Platform: p, Cause: fmt.Errorf("credentials rejected (status %d)", se.code)}
		case http.StatusTooManyRequests:
			return &ErrPlatformUnavailable{Platform: p, Cause: errors.New("rate limited by server"), RetryAfter: se.retryAfter}
		}
		return &ErrPlatformUnavailable{Platform: p, Cause: se}
	}
	return &ErrPlatformUnavailable{Platform: p, Cause: err}
}
