package main

import (
	"errors"

	"github.com/ThiagoRGoveia/club-power/internal/ingestion"
)

// Exit codes of the import command.
const (
	exitOK     = 0
	exitUsage  = 1
	exitRead   = 2
	exitSchema = 3
	exitWrite  = 4
)

type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func withCode(code int, err error) error {
	return &exitError{code: code, err: err}
}

// exitCodeOf returns the code attached by withCode. Errors raised by cobra
// itself, such as a wrong argument count, are usage errors.
func exitCodeOf(err error) int {
	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}
	return exitUsage
}

// exitCodeFor classifies an ingest failure. A file with no valid rows is a
// soft success.
func exitCodeFor(err error) int {
	var schemaErr *ingestion.SchemaError
	var parseErr *ingestion.ParseError
	var writeErr *ingestion.WriteError
	switch {
	case errors.Is(err, ingestion.ErrEmptyBatch):
		return exitOK
	case errors.Is(err, ingestion.ErrUnsupportedFormat), errors.As(err, &parseErr):
		return exitRead
	case errors.As(err, &schemaErr):
		return exitSchema
	case errors.As(err, &writeErr):
		return exitWrite
	default:
		return exitUsage
	}
}
