// Package apperrors holds the sentinel error taxonomy shared by the
// exchange, control, executor and notify packages so callers can branch
// on error identity with errors.Is/errors.As instead of string matching.
package apperrors

import (
	"errors"
	"fmt"
)

// Sentinel errors. Wrap with fmt.Errorf("...: %w", ErrX) to add context
// while keeping errors.Is(err, ErrX) working.
var (
	// ErrTradingSuspended is returned when the kill switch is off.
	ErrTradingSuspended = errors.New("trading suspended: kill switch is off")

	// ErrPanicTooHigh is returned when a buy is rejected by the panic gate.
	ErrPanicTooHigh = errors.New("panic score above threshold")

	// ErrInsufficientBalance is returned by the simulated gateway when an
	// order can't be covered by the relevant asset balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrVenueError wraps a live-gateway failure or timeout.
	ErrVenueError = errors.New("venue error")

	// ErrTransientStore marks a ControlSurface/MarketStore unavailability.
	ErrTransientStore = errors.New("transient store error")

	// ErrSchemaViolation marks a duplicate unique key on upsert.
	ErrSchemaViolation = errors.New("schema violation: duplicate key")

	// ErrModelLoad marks an MLFilter bundle load failure.
	ErrModelLoad = errors.New("model load error")

	// ErrConfiguration marks a fatal startup configuration problem.
	ErrConfiguration = errors.New("configuration error")

	// ErrSignatureInvalid marks a webhook HMAC verification failure.
	ErrSignatureInvalid = errors.New("invalid signature")
)

// PanicTooHighError carries the offending score and threshold.
type PanicTooHighError struct {
	Score     float64
	Threshold float64
}

func (e *PanicTooHighError) Error() string {
	return fmt.Sprintf("panic score %.2f exceeds threshold %.2f", e.Score, e.Threshold)
}

func (e *PanicTooHighError) Unwrap() error { return ErrPanicTooHigh }

// InsufficientBalanceError carries the asset and shortfall detail.
type InsufficientBalanceError struct {
	Asset     string
	Required  float64
	Available float64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: need %.8f %s, have %.8f", e.Required, e.Asset, e.Available)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// VenueError wraps an underlying live-venue failure.
type VenueError struct {
	Op  string
	Err error
}

func (e *VenueError) Error() string {
	return fmt.Sprintf("venue error during %s: %v", e.Op, e.Err)
}

func (e *VenueError) Unwrap() error { return ErrVenueError }

// ConfigurationError carries the offending field.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }
