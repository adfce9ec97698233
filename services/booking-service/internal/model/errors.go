package model

import "errors"

// Error classes shared by the availability and booking paths. Callers wrap them with
// fmt.Errorf("%w: ...") and test with errors.Is.
var (
	ErrValidation        = errors.New("validation error")
	ErrNotFound          = errors.New("not found")
	ErrSlotTaken         = errors.New("SLOT_TAKEN")
	ErrInternal          = errors.New("internal error")
	ErrInvalidTransition = errors.New("invalid status transition")
)
