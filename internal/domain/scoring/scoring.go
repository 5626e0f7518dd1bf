// Package scoring computes the engagement score of a repository record.
//
// The score is a pure function of the record and an injected "now": the
// same inputs always produce the same integer, and nothing is read from
// or written to shared state, so it is safe to call from many workers.
package scoring

import (
	"errors"
	"fmt"
	"math"
	"time"
	"unicode/utf8"

	"github.com/okian/innerscore/internal/domain/model"
)

// Scoring constants.
const (
	baseline            = 50.0
	forkWeight          = 5.0
	recencyWindowDays   = 100
	boostMax            = 1000.0
	boostDecayPerDay    = 2.74 // ~1000/365
	boostWindowDays     = 365
	descriptionMinRunes = 200
	descriptionBonus    = 50.0
	contributionsMin    = 1
	contributionsBonus  = 100.0
	saturationThreshold = 3000.0
	saturationFactor    = 100.0

	day = 24 * time.Hour
)

// ErrMissingField marks a record without a required scoring input.
var ErrMissingField = errors.New("missing required field")

// Input holds the record fields the score depends on. Optional inputs
// are explicit: a nil Description and a nil Manifest contribute nothing.
type Input struct {
	ForksCount  int
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Description *string
	Manifest    *model.Manifest
}

// FromRepository extracts the scoring input from a repository record.
// The returned Input aliases r's optional fields; Compute never writes them.
func FromRepository(r *model.Repository) Input {
	in := Input{
		ForksCount:  r.ForksCount,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		Description: r.Description,
	}
	if r.HasManifest() {
		in.Manifest = r.Manifest
	}
	return in
}

// Validate checks the required fields. The aggregator calls it before
// Compute so that a bad record is skipped instead of crashing a worker.
func Validate(in Input) error {
	switch {
	case in.CreatedAt.IsZero():
		return fmt.Errorf("created_at: %w", ErrMissingField)
	case in.UpdatedAt.IsZero():
		return fmt.Errorf("updated_at: %w", ErrMissingField)
	case in.ForksCount < 0:
		return fmt.Errorf("forks_count %d is negative: %w", in.ForksCount, ErrMissingField)
	}
	return nil
}

// Compute returns the engagement score of in at instant now.
// It panics if in fails Validate.
func Compute(in Input, now time.Time) int {
	if err := Validate(in); err != nil {
		panic("scoring: " + err.Error())
	}

	score := baseline
	score += float64(in.ForksCount) * forkWeight

	sinceUpdate := elapsedDays(in.UpdatedAt, now)
	sinceCreation := elapsedDays(in.CreatedAt, now)

	score *= recencyMultiplier(sinceUpdate)
	score += boost(sinceUpdate, sinceCreation)

	if in.Description != nil && utf8.RuneCountInString(*in.Description) > descriptionMinRunes {
		score += descriptionBonus
	}
	if in.Manifest != nil && len(in.Manifest.Contributions) > contributionsMin {
		score += contributionsBonus
	}

	score = saturate(score)

	// Half-to-even matches the rounding of the portal's original scorer.
	result := int(math.RoundToEven(score - baseline))
	if result < 0 {
		return 0
	}
	return result
}

// elapsedDays returns whole days from t to now, clamped at zero.
func elapsedDays(t, now time.Time) int {
	d := now.Sub(t)
	if d < 0 {
		return 0
	}
	return int(d / day)
}

// recencyMultiplier is 2.0 for an update today, falling linearly to 1.0
// at recencyWindowDays and staying there.
func recencyMultiplier(sinceUpdate int) float64 {
	return 1 + float64(recencyWindowDays-min(sinceUpdate, recencyWindowDays))/recencyWindowDays
}

// boost decays linearly with days since update, scaled down by age so
// only repositories in their first year receive it.
func boost(sinceUpdate, sinceCreation int) float64 {
	b := boostMax - float64(min(sinceUpdate, boostWindowDays))*boostDecayPerDay
	b *= float64(boostWindowDays-min(sinceCreation, boostWindowDays)) / boostWindowDays
	return b
}

// saturate compresses scores above the threshold into a logarithmic tail.
func saturate(score float64) float64 {
	if score > saturationThreshold {
		return saturationThreshold + saturationFactor*math.Log(score)
	}
	return score
}

// Scorer scores repository records at a caller-supplied instant.
type Scorer interface {
	Score(r *model.Repository, now time.Time) (int, error)
}

// Engine implements Scorer on top of Compute.
type Engine struct{}

// NewEngine returns a ready Engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Score validates r and computes its score. Missing required fields are
// returned as errors wrapping ErrMissingField.
func (e *Engine) Score(r *model.Repository, now time.Time) (int, error) {
	in := FromRepository(r)
	if err := Validate(in); err != nil {
		return 0, fmt.Errorf("score %s: %w", r.Name, err)
	}
	return Compute(in, now), nil
}
