package ingestion

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ThiagoRGoveia/club-power/internal/parser"
)

var (
	ErrUnsupportedFormat = parser.ErrUnsupportedFormat
	ErrEmptyBatch        = errors.New("the file has no valid rows")
)

// SchemaError lists every required column that could not be found in the
// header after reconciliation.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("missing required columns: %s", strings.Join(e.Missing, ", "))
}

// ParseError wraps a failure to decode the payload as a table.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("could not read the file: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// WriteError wraps a failed snapshot transaction. Nothing of the batch was
// persisted when it is returned.
type WriteError struct {
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("could not write snapshot, transaction rolled back: %v", e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
