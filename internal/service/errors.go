package service

import "errors"

var (
	ErrTokenUnavailable   = errors.New("secret path token could not be generated")
	ErrCoordinatorClosed  = errors.New("coordinator is closed")
	ErrHistoryUnavailable = errors.New("session history is unavailable")
)
