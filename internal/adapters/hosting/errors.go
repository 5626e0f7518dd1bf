package hosting

import "errors"

var (
	// ErrNotFound is returned when the hosting service answers 404.
	ErrNotFound = errors.New("hosting: not found")

	// ErrFileNotFound is returned by GetFile when the file or commit is missing.
	ErrFileNotFound = errors.New("hosting: file not found")

	// ErrRateLimited is returned after retries on 429 are exhausted.
	ErrRateLimited = errors.New("hosting: rate limited")

	// ErrUpstreamDown is returned on 5xx responses or when the breaker is open.
	ErrUpstreamDown = errors.New("hosting: upstream unavailable")

	// ErrInvalidEndpoint is returned by NewHTTPClient for an unusable base URL.
	ErrInvalidEndpoint = errors.New("hosting: invalid endpoint")
)
