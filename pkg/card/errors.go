package card

import "errors"

var (
	// ErrPersistence wraps every failed write to the record store.
	ErrPersistence     = errors.New("error persisting task")
	ErrWrongMode       = errors.New("not permitted in the current mode")
	ErrSubtaskNotFound = errors.New("subtask not found")
	ErrTaskMismatch    = errors.New("update is for a different task")
	ErrUnknownField    = errors.New("unknown task field")
)
