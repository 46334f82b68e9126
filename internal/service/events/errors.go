package events

import "errors"

var (
	ErrEventNotFound = errors.New("event not found")
	ErrSlotNotFound  = errors.New("slot not found")
	ErrEventConflict = errors.New("conflict creating event")
)
