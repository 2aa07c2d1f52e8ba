package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrNoPosts           = errors.New("no posts found for period")
	ErrJobFinalized      = errors.New("job already finalized")
	ErrInvalidTransition = errors.New("invalid job transition")
)
