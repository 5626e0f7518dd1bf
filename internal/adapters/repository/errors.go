package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound      = errors.New("repository not found")
	ErrInvalidLimit  = errors.New("invalid leaderboard limit")
	ErrDuplicateName = errors.New("duplicate repository name")
)
