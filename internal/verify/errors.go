package verify

import "errors"

// Sentinel kinds for verification errors.
var (
	ErrUnexpectedStatus = errors.New("unexpected status")
	ErrInconsistent     = errors.New("leaderboard inconsistent with collection")
)
