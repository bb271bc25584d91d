package httputil

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/incidentlab/topograph/pkg/errors"
)

func TestRetry(t *testing.T) {
	transient := &RetryableError{Err: stderrors.New("transient")}
	tests := []struct {
		name      string
		attempts  int
		failures  int
		err       error
		wantCalls int
		wantErr   bool
	}{
		{name: "FirstTry", attempts: 3, failures: 0, wantCalls: 1},
		{name: "RecoversAfterRetry", attempts: 3, failures: 2, err: transient, wantCalls: 3},
		{name: "ExhaustsAttempts", attempts: 2, failures: 5, err: transient, wantCalls: 2, wantErr: true},
		{name: "PermanentStopsImmediately", attempts: 3, failures: 5, err: stderrors.New("permanent"), wantCalls: 1, wantErr: true},
		{name: "ZeroAttemptsRunsOnce", attempts: 0, failures: 5, err: transient, wantCalls: 1, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := Retry(context.Background(), tt.attempts, time.Millisecond, func() error {
				calls++
				if calls <= tt.failures {
					return tt.err
				}
				return nil
			})
			if (err != nil) != tt.wantErr {
				t.Errorf("Retry() error = %v, wantErr %v", err, tt.wantErr)
			}
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
		})
	}
}

func TestRetryContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Retry(ctx, 3, time.Hour, func() error {
		return &RetryableError{Err: stderrors.New("transient")}
	})
	if !stderrors.Is(err, context.Canceled) {
		t.Errorf("Retry() error = %v, want context.Canceled", err)
	}
}

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want time.Duration
	}{
		{"Backoff", &RetryableError{Err: stderrors.New("reset")}, 2 * time.Second},
		{"RetryAfter", &RetryableError{Err: &errors.RateLimitedError{RetryAfter: 7}}, 7 * time.Second},
		{"RetryAfterMissing", &RetryableError{Err: &errors.RateLimitedError{}}, 2 * time.Second},
		{"RetryAfterCapped", &RetryableError{Err: &errors.RateLimitedError{RetryAfter: 3600}}, MaxRetryAfter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retryDelay(tt.err, 2*time.Second); got != tt.want {
				t.Errorf("retryDelay() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRetryWaitsForRetryAfter(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	calls := 0
	err := Retry(ctx, 3, time.Millisecond, func() error {
		calls++
		return &RetryableError{Err: &errors.RateLimitedError{RetryAfter: 30}}
	})
	if !stderrors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Retry() error = %v, want context.DeadlineExceeded", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 while waiting out Retry-After", calls)
	}
}

func TestCheckStatus(t *testing.T) {
	tests := []struct {
		status    int
		code      errors.Code
		retryable bool
	}{
		{status: http.StatusOK},
		{status: http.StatusNoContent},
		{status: http.StatusNotFound, code: errors.ErrCodeNotFound},
		{status: http.StatusTooManyRequests, code: errors.ErrCodeRateLimited, retryable: true},
		{status: http.StatusBadGateway, code: errors.ErrCodeNetwork, retryable: true},
		{status: http.StatusBadRequest, code: errors.ErrCodeNetwork},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "7")
			w.WriteHeader(tt.status)
		}))
		resp, err := http.Get(srv.URL + "/topo")
		if err != nil {
			srv.Close()
			t.Fatal(err)
		}
		resp.Body.Close()
		srv.Close()

		err = CheckStatus(resp)
		if got := errors.GetCode(err); got != tt.code {
			t.Errorf("status %d: code = %q, want %q", tt.status, got, tt.code)
		}
		if got := isRetryable(err); got != tt.retryable {
			t.Errorf("status %d: retryable = %v, want %v", tt.status, got, tt.retryable)
		}
		var rl *errors.RateLimitedError
		if tt.status == http.StatusTooManyRequests && (!stderrors.As(err, &rl) || rl.RetryAfter != 7) {
			t.Errorf("status 429: error = %v, want RateLimitedError with RetryAfter 7", err)
		}
	}
}
