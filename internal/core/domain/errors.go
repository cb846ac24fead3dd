package domain

import "errors"

var (
	ErrConnectionNotFound = errors.New("connection not found")
	ErrSessionNotFound    = errors.New("session not found")
	ErrAlreadyPaired      = errors.New("connection is already paired")
	ErrInvalidIdentity    = errors.New("invalid identity tag")
	ErrInvalidPayload     = errors.New("invalid event payload")
)
