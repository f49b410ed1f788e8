package errs

import (
	"errors"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrExpired        = errors.New("access code is expired")
	ErrSessionExpired = errors.New("reading session is expired")
	ErrForbidden      = errors.New("forbidden")
	ErrBadCredentials = errors.New("invalid credentials")
	ErrCodeTaken      = errors.New("access code is already taken")
)
