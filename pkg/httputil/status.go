package httputil

import (
	"net/http"
	"strconv"
	"time"

	"github.com/incidentlab/topograph/pkg/errors"
)

// DefaultTimeout bounds a single request to a collaborator service.
const DefaultTimeout = 10 * time.Second

// NewHTTPClient creates an HTTP client with [DefaultTimeout].
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: DefaultTimeout}
}

// CheckStatus maps a response status to a coded error.
//
//   - 2xx: nil
//   - 404: NOT_FOUND
//   - 429: [*errors.RateLimitedError], retryable
//   - 5xx: NETWORK_ERROR, retryable
//   - anything else: NETWORK_ERROR
func CheckStatus(resp *http.Response) error {
	code := resp.StatusCode
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return errors.New(errors.ErrCodeNotFound, "%s: status %d", resp.Request.URL.Path, code)
	case code == http.StatusTooManyRequests:
		retryAfter, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
		return &RetryableError{Err: &errors.RateLimitedError{RetryAfter: retryAfter}}
	case code >= 500:
		return &RetryableError{Err: errors.New(errors.ErrCodeNetwork, "%s: status %d", resp.Request.URL.Path, code)}
	default:
		return errors.New(errors.ErrCodeNetwork, "%s: status %d", resp.Request.URL.Path, code)
	}
}

// TransportError wraps a failed round trip as a retryable NETWORK_ERROR.
func TransportError(err error) error {
	return &RetryableError{Err: errors.Wrap(errors.ErrCodeNetwork, err, "request failed")}
}
