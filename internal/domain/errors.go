package domain

import "errors"

var ErrNotFound = errors.New("not found")
var ErrInvalidInput = errors.New("invalid input")
var ErrAlreadyExists = errors.New("already exists")
