package tracker

import "errors"

// ErrEpicNotFound is returned when a subtask references an epic that is not stored.
var ErrEpicNotFound = errors.New("epic not found")
