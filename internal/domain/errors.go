package domain

import "errors"

var (
	ErrNotFound        = errors.New("posting not found")
	ErrInvalidFilter   = errors.New("invalid filter")
	ErrInvalidPosting  = errors.New("invalid posting")
	ErrPageUnavailable = errors.New("page unavailable")
	ErrRunInProgress   = errors.New("scrape run already in progress")
	ErrUnknownScanner  = errors.New("scanner is not registered")
)
