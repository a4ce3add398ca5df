package models

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("validation failed")
	ErrRemoteUnavailable  = errors.New("remote service unavailable")
	ErrPartialGraphUpdate = errors.New("partial graph update")
	ErrForbidden          = errors.New("forbidden")
)
