package verify

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/innerscore/pkg/logger"
)

// Run fetches the collection and the leaderboard from the server and
// checks that they agree. Problems are listed in the report and the
// returned error wraps ErrInconsistent.
func Run(ctx context.Context, cfg Config, log logger.Logger) (Report, error) {
	cfg = cfg.normalized()
	start := time.Now()
	c := newClient(cfg.BaseURL, cfg.Timeout)

	log.Info(ctx, "verifying server",
		logger.String("base_url", cfg.BaseURL),
		logger.Int("top_n", cfg.TopN),
	)

	records, err := c.collection(ctx)
	if err != nil {
		return Report{}, err
	}
	entries, err := c.leaderboard(ctx, cfg.TopN)
	if err != nil {
		return Report{}, err
	}

	rep := Report{
		Records:  len(records),
		Entries:  len(entries),
		Problems: check(records, entries, cfg.TopN),
	}
	rep.Duration = time.Since(start).String()

	if !rep.OK() {
		for _, p := range rep.Problems {
			log.Warn(ctx, "verification problem", logger.String("problem", p))
		}
		return rep, fmt.Errorf("%w: %d problems", ErrInconsistent, len(rep.Problems))
	}
	log.Info(ctx, "verification passed", logger.Int("records", rep.Records), logger.Int("entries", rep.Entries))
	return rep, nil
}
