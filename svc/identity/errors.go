package identity

import "errors"

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidEmail = errors.New("invalid email")
)
