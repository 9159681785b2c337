package errors

import (
	"errors"
	"fmt"
)

// Common error types for categorization and handling

var (
	// ErrNotFound indicates a requested resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates invalid user input
	ErrInvalidInput = errors.New("invalid input")

	// ErrTurnInFlight indicates a turn is already awaiting a response
	ErrTurnInFlight = errors.New("turn already in flight")

	// ErrStorageOperation indicates a storage operation failed
	ErrStorageOperation = errors.New("storage operation failed")

	// ErrProviderCommunication indicates AI provider communication failed
	ErrProviderCommunication = errors.New("provider communication failed")
)

// WrapError wraps an error with context message and stack
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// WrapErrorf wraps an error with formatted context message
func WrapErrorf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// IsNotFound checks if error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalidInput checks if error is an invalid input error
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsTurnInFlight checks if error is an in-flight turn rejection
func IsTurnInFlight(err error) bool {
	return errors.Is(err, ErrTurnInFlight)
}

// IsProviderCommunication checks if error is a provider communication error
func IsProviderCommunication(err error) bool {
	return errors.Is(err, ErrProviderCommunication)
}
