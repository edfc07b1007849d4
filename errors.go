package deeptorch

import (
	"fmt"
)

// Error is a wrapper for specific types of errors for which there is no additional information
// necessary. These errors are defined as global variables, and can all be compared directly.
type Error struct{ string }

func (err Error) Error() string {
	return err.string
}

// These are the global errors that may be returned or panicked.
var (
	ErrRegisterWrongType = Error{"Type is not recognized"}
	ErrRegisterNilReturn = Error{"Function return is nil"}
	ErrRegisterTaken     = Error{"Type name is already registered"}

	ErrGraphBuilt      = Error{"Graph has already been built"}
	ErrGraphNotBuilt   = Error{"Graph has not been built"}
	ErrNoInputs        = Error{"Node must have at least one input"}
	ErrNoOutputs       = Error{"Graph must have at least one output"}
	ErrForeignNode     = Error{"Node belongs to a different Graph"}
	ErrSubgraphOnInput = Error{"Nested Graph cannot consume the raw Graph input"}
	ErrNothingSelected = Error{"No layer was selected"}
)

// NilArgError documents errors resulting from certain arguments provided to a function being nil.
type NilArgError struct{ string }

func (err NilArgError) Error() string {
	return err.string + " is nil"
}

// NilArg returns a NilArgError for the named argument
func NilArg(what string) NilArgError {
	return NilArgError{what}
}

// SizeMismatchError is returned when the length of a set of values does not match what the
// receiver expects.
type SizeMismatchError struct {
	What      string
	Got, Want int
}

func (err SizeMismatchError) Error() string {
	return fmt.Sprintf("%s has wrong size (%d != %d)", err.What, err.Got, err.Want)
}

// ConfigError is returned for configurations that are rejected before any training starts.
type ConfigError struct {
	Field  string
	Reason string
}

func (err *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", err.Field, err.Reason)
}
