package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrRateLimited    = errors.New("rate limited")
	ErrInvalidAddress = errors.New("invalid wallet address")
	ErrSyncInProgress = errors.New("sync already in progress")
)
