// Package domain defines the core business entities and errors.
package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidPayload is returned when a task payload combination is illegal
	// for its trigger kind.
	ErrInvalidPayload = errors.New("invalid task payload")

	// ErrInvalidTaskStatus is returned when a task status is not valid.
	ErrInvalidTaskStatus = errors.New("invalid task status")

	// ErrInvalidTriggerKind is returned when a trigger kind is not recognised.
	ErrInvalidTriggerKind = errors.New("invalid trigger kind")

	// ErrEmptyContent is returned when required content is empty.
	ErrEmptyContent = errors.New("content cannot be empty")
)
