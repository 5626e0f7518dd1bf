package service

import (
	"time"

	"github.com/okian/innerscore/internal/domain/model"
	"github.com/okian/innerscore/internal/domain/scoring"
	"github.com/okian/innerscore/pkg/logger"
)

// Option applies a configuration option to the Harvester.
type Option func(*Harvester)

// WithWorkerCount sets the number of worker goroutines per pass.
func WithWorkerCount(count int) Option {
	return func(h *Harvester) {
		if count > 0 {
			h.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the job queue of a pass.
func WithQueueSize(size int) Option {
	return func(h *Harvester) {
		if size > 0 {
			h.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the per-pass name dedupe set.
func WithDedupeSize(size int) Option {
	return func(h *Harvester) {
		if size > 0 {
			h.dedupeSize = size
		}
	}
}

// WithFilter sets the tag filter and owner placeholder.
func WithFilter(f Filter) Option {
	return func(h *Harvester) {
		h.filter = f.normalized()
	}
}

// WithScorer replaces the scoring engine.
func WithScorer(s scoring.Scorer) Option {
	return func(h *Harvester) {
		if s != nil {
			h.scorer = s
		}
	}
}

// WithClock sets the time source. A pass reads it once.
func WithClock(now func() time.Time) Option {
	return func(h *Harvester) {
		if now != nil {
			h.now = now
		}
	}
}

// WithLogger sets a custom logger for the harvester.
func WithLogger(l logger.Logger) Option {
	return func(h *Harvester) {
		if l != nil {
			h.logger = l
		}
	}
}

// ServiceOption applies a configuration option to the Service.
type ServiceOption func(*Service)

// WithInterval sets the pause between periodic passes.
func WithInterval(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithRunOnStart controls whether Start runs a pass immediately.
func WithRunOnStart(run bool) ServiceOption {
	return func(s *Service) {
		s.runOnStart = run
	}
}

// WithServiceLogger sets a custom logger for the service.
func WithServiceLogger(l logger.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// DefaultOwner is the placeholder owner block the portal requires.
var DefaultOwner = model.Owner{Login: "Noble", AvatarURL: "./images/demo/Sol.png"}
