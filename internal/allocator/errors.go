package allocator

import "errors"

var (
	ErrAlreadyExists = errors.New("allocator: channel already exists")
	ErrNotFound      = errors.New("allocator: channel not found")
	ErrInvalidInput  = errors.New("allocator: invalid input")
	ErrOutOfMemory   = errors.New("allocator: out of memory")
	ErrInvalidData   = errors.New("allocator: invalid data")
)
