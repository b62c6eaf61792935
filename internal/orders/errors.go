package orders

import "errors"

var (
	ErrValidation        = errors.New("invalid order request")
	ErrNotFound          = errors.New("order not found")
	ErrAlreadyExists     = errors.New("order already exists")
	ErrInvalidTransition = errors.New("invalid status transition")
)
