package transport

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusError reports a non-2xx HTTP response, carrying enough of the
// body for diagnostics.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("http status %d: %s", e.StatusCode, body)
}

// retryableStatuses are the transient HTTP statuses worth retrying.
var retryableStatuses = map[int]bool{
	http.StatusRequestTimeout:      true,
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// IsRetryableStatus reports whether an HTTP status is worth retrying.
func IsRetryableStatus(status int) bool {
	return retryableStatuses[status]
}

// IsTransient is the RetryCondition for HTTP calls: network errors and
// retryable statuses trigger a retry, other statuses do not.
func IsTransient() RetryCondition {
	return func(err error) bool {
		var se *StatusError
		if errors.As(err, &se) {
			return IsRetryableStatus(se.StatusCode)
		}
		// Anything that is not a status error is a transport failure.
		return true
	}
}

// TruncateBody limits a response body for logging, reporting whether it
// was cut and its original length.
func TruncateBody(body string, maxChars int) (string, bool, int) {
	length := len(body)
	if maxChars <= 0 || length <= maxChars {
		return body, false, length
	}
	return body[:maxChars], true, length
}
