// Package repository holds the latest published collection and answers
// lookups and rankings over it.
package repository

import (
	"context"
	"time"

	"github.com/okian/innerscore/internal/domain/model"
)

// Entry represents a leaderboard row.
type Entry struct {
	Rank  int    `json:"rank"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// Run describes the pass that produced the current collection.
type Run struct {
	ID    string    `json:"run_id"`
	At    time.Time `json:"at"`
	Count int       `json:"count"`
}

// Store provides access to the published collection.
type Store interface {
	// Replace swaps the whole collection for records produced by runID.
	Replace(ctx context.Context, runID string, records []model.Repository) error

	// All returns the collection sorted by name.
	All(ctx context.Context) ([]model.Repository, error)

	// Get returns one record. Returns ErrNotFound if the name is unknown.
	Get(ctx context.Context, name string) (model.Repository, error)

	// TopN returns the top-N entries ordered by score desc, then name asc.
	TopN(ctx context.Context, n int) ([]Entry, error)

	// Count returns the number of records in the collection.
	Count(ctx context.Context) int

	// LastRun returns the pass behind the collection; false before the first Replace.
	LastRun(ctx context.Context) (Run, bool)
}
