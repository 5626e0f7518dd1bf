package manifest

import "github.com/okian/innerscore/pkg/logger"

// Option configures a Reader.
type Option func(*Reader)

// WithPath sets the manifest file name.
func WithPath(path string) Option {
	return func(r *Reader) {
		if path != "" {
			r.path = path
		}
	}
}

// WithCacheSize sets the number of cached manifests.
func WithCacheSize(n int) Option {
	return func(r *Reader) {
		if n > 0 {
			r.cacheSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Reader) {
		if l != nil {
			r.log = l
		}
	}
}
