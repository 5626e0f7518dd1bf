// Package verify checks a running innerscore server: the leaderboard must
// agree with the published collection.
package verify

import (
	"time"

	"github.com/okian/innerscore/internal/adapters/repository"
)

const (
	defaultTopN    = 10
	defaultTimeout = 10 * time.Second
)

// Config holds configuration for a verification run.
type Config struct {
	BaseURL string        // Base URL of the server
	TopN    int           // Number of leaderboard entries to fetch
	Timeout time.Duration // HTTP request timeout
}

// Entry is a leaderboard row as served by the API.
type Entry = repository.Entry

// Report holds the outcome of a verification run.
type Report struct {
	Records  int      `json:"records"`
	Entries  int      `json:"entries"`
	Problems []string `json:"problems"`
	Duration string   `json:"duration"`
}

// OK reports whether no problem was found.
func (r Report) OK() bool {
	return len(r.Problems) == 0
}

func (c Config) normalized() Config {
	if c.TopN < 1 {
		c.TopN = defaultTopN
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	return c
}
