package repository

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrSlotTaken     = errors.New("slot already booked")
	ErrSpaceInactive = errors.New("space is not active")
	ErrCancelled     = errors.New("booking already cancelled")
)
