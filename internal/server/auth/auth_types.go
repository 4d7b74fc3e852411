package auth

import "errors"

var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrInvalidWorkspace = errors.New("invalid workspace id")
)
