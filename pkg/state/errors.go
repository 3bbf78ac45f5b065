package state

import "errors"

var (
	// ErrRunInProgress indicates another live process holds the run lock
	ErrRunInProgress = errors.New("release run already in progress")

	// ErrRunNotFound indicates no run record exists for the package
	ErrRunNotFound = errors.New("run record not found")
)
