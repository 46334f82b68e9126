package query

import "errors"

var (
	ErrUserNotFound = errors.New("user not found")
)
