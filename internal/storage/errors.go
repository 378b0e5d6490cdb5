package storage

import "errors"

// Storage errors. Runs, states and samples are written once per run and never updated;
// daily prices are written once per (symbol, date).
var (
	// ErrNotFound is returned when a requested run does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when a run, its states or a daily price row already exist.
	ErrDuplicateKey = errors.New("duplicate key: record already stored")

	// ErrInvalidInput is returned for nil records, empty IDs or empty symbols.
	ErrInvalidInput = errors.New("invalid input")
)
