package model

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds returned by the analytics core. Callers match them with errors.Is.
var (
	ErrSchema              = errors.New("schema error")
	ErrEmptyDataset        = errors.New("empty dataset")
	ErrInsufficientData    = errors.New("insufficient data")
	ErrInsufficientHistory = errors.New("insufficient history")
	ErrClustering          = errors.New("clustering error")
	ErrConsistency         = errors.New("consistency error")
	ErrInvalidParameter    = errors.New("invalid parameter")
)

// SchemaError lists the required columns that are missing or hold no parseable value.
type SchemaError struct {
	Missing      []string
	Incompatible []string
}

func (e *SchemaError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing columns: %s", strings.Join(e.Missing, ", ")))
	}
	if len(e.Incompatible) > 0 {
		parts = append(parts, fmt.Sprintf("incompatible columns: %s", strings.Join(e.Incompatible, ", ")))
	}
	return fmt.Sprintf("%v: %s", ErrSchema, strings.Join(parts, "; "))
}

func (e *SchemaError) Is(target error) bool { return target == ErrSchema }
