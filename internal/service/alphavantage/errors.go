package alphavantage

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingAPIKey is returned by New when no API key is configured.
	ErrMissingAPIKey = errors.New("alphavantage: api key is required")
	// ErrMalformedResponse covers bodies that are not JSON objects or lack a
	// required key such as bestMatches.
	ErrMalformedResponse = errors.New("alphavantage: malformed response")
	// ErrUnavailable wraps transport failures (DNS, refused, timeout).
	ErrUnavailable = errors.New("alphavantage: provider unreachable")
)

// UpstreamError is a non-2xx answer from the provider. It is always a hard
// fault, even when the body is a JSON error document.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("alphavantage: upstream status %d", e.StatusCode)
	}
	return fmt.Sprintf("alphavantage: upstream status %d: %s", e.StatusCode, e.Body)
}

// IsProviderFault reports whether err is a provider-side failure as opposed
// to a caller or local error.
func IsProviderFault(err error) bool {
	return IsUpstream(err) || errors.Is(err, ErrMalformedResponse) || errors.Is(err, ErrUnavailable)
}

// IsUpstream reports whether err carries an UpstreamError.
func IsUpstream(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}
