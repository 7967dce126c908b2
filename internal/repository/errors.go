package repository

import "errors"

var (
	ErrNotFound              = errors.New("record not found")
	ErrAlreadyAssigned       = errors.New("phone number already assigned to a group")
	ErrArmFull               = errors.New("study group is full")
	ErrMultipleActiveStudies = errors.New("more than one active lift study")
)

// dateLayout is how DATE columns are written and compared.
const dateLayout = "2006-01-02"
