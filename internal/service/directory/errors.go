package directory

import "errors"

var (
	ErrSpaceNotFound = errors.New("space not found")
	ErrSpaceExists   = errors.New("space already exists")
	ErrBadCapacity   = errors.New("capacity must be at least 1")
	ErrBadRules      = errors.New("invalid booking rules")
)
