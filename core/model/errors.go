package model

import "errors"

// ErrNotFound indicates an unknown vehicle type identifier.
var ErrNotFound = errors.New("vehicle type not found")

// ErrInvalidScenario indicates a malformed or internally inconsistent
// scenario definition. Detected before any year is processed.
var ErrInvalidScenario = errors.New("invalid scenario")

// ErrTimeout indicates a year step exceeded its time budget. The run ends
// with partial status, preserving years committed so far.
var ErrTimeout = errors.New("computation timeout")
