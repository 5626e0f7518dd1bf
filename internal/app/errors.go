package service

import "errors"

// Sentinel kinds for harvest errors.
var (
	ErrPassRunning      = errors.New("harvest pass already running")
	ErrListRepositories = errors.New("listing repositories failed")
	ErrPublish          = errors.New("publishing collection failed")
)
