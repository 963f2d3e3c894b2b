package models

import "errors"

var (
	// ErrNotFound is returned when an operation references an unknown user id.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument covers malformed input such as a group mode without a target.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUserBlocked is returned when a blocked user is addressed by a reply.
	ErrUserBlocked = errors.New("user is blocked")
)
