// Package httputil provides retry support for remote provider transports.
//
// Remote calls classify their failures: transport errors and 5xx/429
// responses are wrapped with [Retryable] so [Retry] attempts them again
// with exponential backoff, while 4xx responses return immediately.
//
//	err := httputil.RetryWithBackoff(ctx, func() error {
//	    resp, err := client.Do(req)
//	    if err != nil {
//	        return httputil.Retryable(err)
//	    }
//	    defer resp.Body.Close()
//	    if httputil.RetryableStatus(resp.StatusCode) {
//	        return httputil.Retryable(fmt.Errorf("server error: %d", resp.StatusCode))
//	    }
//	    ...
//	})
//
// Response caching lives in pkg/cache; this package stays transport-only.
package httputil
