package query

import (
	"errors"
)

var (
	ErrSpaceNotFound   = errors.New("space not found")
	ErrBookingNotFound = errors.New("booking not found")
	ErrBadTimezone     = errors.New("unknown timezone")
)
