package hosting

import (
	"net/http"
	"time"

	"github.com/okian/innerscore/pkg/logger"
)

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithHTTPClient sets a custom HTTP client. The DNS caching transport is
// not installed when this option is used.
func WithHTTPClient(c *http.Client) Option {
	return func(h *HTTPClient) {
		h.client = c
	}
}

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(h *HTTPClient) {
		h.token = token
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(h *HTTPClient) {
		h.userAgent = ua
	}
}

// WithTimeout bounds a single request.
func WithTimeout(d time.Duration) Option {
	return func(h *HTTPClient) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// WithMaxRetries sets the maximum retry attempts on 429 and 5xx.
func WithMaxRetries(n int) Option {
	return func(h *HTTPClient) {
		if n >= 0 {
			h.maxRetries = n
		}
	}
}

// WithBaseDelay sets the initial interval of the retry backoff.
func WithBaseDelay(d time.Duration) Option {
	return func(h *HTTPClient) {
		if d > 0 {
			h.baseDelay = d
		}
	}
}

// WithTripThreshold sets how many consecutive failures open a host's breaker.
func WithTripThreshold(n int64) Option {
	return func(h *HTTPClient) {
		if n > 0 {
			h.tripThreshold = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(h *HTTPClient) {
		if l != nil {
			h.log = l
		}
	}
}
