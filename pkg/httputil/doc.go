// Package httputil provides the HTTP plumbing shared by collaborator
// clients.
//
// # Retry
//
// [Retry] runs an operation up to a fixed number of attempts with
// exponential backoff. Only errors wrapped in [RetryableError] are retried,
// and a 429 response's Retry-After hint replaces the backoff delay:
//
//	err := httputil.Retry(ctx, 3, time.Second, func() error {
//	    resp, err := client.Do(req)
//	    if err != nil {
//	        return httputil.TransportError(err)
//	    }
//	    defer resp.Body.Close()
//	    return httputil.CheckStatus(resp)
//	})
//
// # Status Mapping
//
// [CheckStatus] turns HTTP status codes into coded errors from
// [github.com/incidentlab/topograph/pkg/errors]: 404 becomes NOT_FOUND,
// 429 and 5xx become retryable, and other failures become NETWORK_ERROR.
package httputil
