package repository

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrTicketCollision  = errors.New("ticket number already taken")
	ErrReferenceMissing = errors.New("referenced row does not exist")
)
