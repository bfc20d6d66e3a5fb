// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrConfigInvalid     = errors.New("invalid configuration")
	ErrDataNotFound      = errors.New("data not found")
	ErrDatabaseError     = errors.New("database error")
	ErrPositionOpen      = errors.New("position already open")
	ErrNoPosition        = errors.New("no open position")
	ErrInsufficientBars  = errors.New("insufficient bars")
	ErrBatchCancelled    = errors.New("batch run cancelled")
	ErrInputValidation   = errors.New("input validation failed")
	ErrInstrumentUnknown = errors.New("instrument not found")
)

// SizingError rejects a single entry signal: the stop sits at or above
// the entry price, so risk-per-share is not positive. It is recoverable;
// the simulation skips the entry and continues.
type SizingError struct {
	Instrument string
	EntryPrice float64
	StopPrice  float64
}

func (e *SizingError) Error() string {
	return fmt.Sprintf("sizing rejected for %s: stop %.2f not below entry %.2f",
		e.Instrument, e.StopPrice, e.EntryPrice)
}

// NewSizingError creates a new SizingError.
func NewSizingError(instrument string, entry, stop float64) *SizingError {
	return &SizingError{Instrument: instrument, EntryPrice: entry, StopPrice: stop}
}

// DataGapError marks a bar where a required feature column is NaN. The
// bar is skipped for entries; open positions evaluate only the checks
// whose inputs are valid.
type DataGapError struct {
	Instrument string
	Column     string
	Date       string
}

func (e *DataGapError) Error() string {
	return fmt.Sprintf("data gap for %s: column %s is NaN on %s", e.Instrument, e.Column, e.Date)
}

// NewDataGapError creates a new DataGapError.
func NewDataGapError(instrument, column, date string) *DataGapError {
	return &DataGapError{Instrument: instrument, Column: column, Date: date}
}

// ValidationError represents a fatal configuration validation error.
// The engine refuses to run rather than silently default.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// InstrumentError wraps any failure while simulating one instrument.
// Batch runs record it and move on; it never aborts the batch.
type InstrumentError struct {
	Instrument string
	Err        error
}

func (e *InstrumentError) Error() string {
	return fmt.Sprintf("instrument %s: %v", e.Instrument, e.Err)
}

func (e *InstrumentError) Unwrap() error {
	return e.Err
}

// NewInstrumentError creates a new InstrumentError.
func NewInstrumentError(instrument string, err error) *InstrumentError {
	return &InstrumentError{Instrument: instrument, Err: err}
}

// DataError represents a data-related error.
type DataError struct {
	DataType   string
	Instrument string
	Message    string
	Err        error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data error [%s] %s: %s: %v", e.DataType, e.Instrument, e.Message, e.Err)
	}
	return fmt.Sprintf("data error [%s] %s: %s", e.DataType, e.Instrument, e.Message)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// NewDataError creates a new DataError.
func NewDataError(dataType, instrument, message string, err error) *DataError {
	return &DataError{DataType: dataType, Instrument: instrument, Message: message, Err: err}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
