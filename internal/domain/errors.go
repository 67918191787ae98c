package domain

import "errors"

var (
	// ErrObjectNotFound is returned by object stores for missing keys.
	ErrObjectNotFound = errors.New("object not found")

	// ErrUnknownStage is returned when an invocation names no known stage.
	ErrUnknownStage = errors.New("unknown stage")

	// ErrInvalidNotification is returned for upload notifications that carry
	// no object key.
	ErrInvalidNotification = errors.New("invalid upload notification")

	// ErrBucketMismatch is returned when an invocation names a bucket the
	// lake it would run on does not hold.
	ErrBucketMismatch = errors.New("bucket mismatch")

	// ErrNotConfigured is returned when an optional collaborator is absent.
	ErrNotConfigured = errors.New("collaborator not configured")
)
