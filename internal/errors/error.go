package errors

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ingestion
	ErrSenderBlocked = &RejectionError{Reason: "Sender is blocked"}

	// lookups
	ErrEmailNotFound      = errors.New("email not found")
	ErrAttachmentNotFound = errors.New("attachment not found")

	// mailbox errors
	ErrMailboxExists      = errors.New("mailbox already exists")
	ErrMailboxExpired     = errors.New("mailbox expired")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// outbound
	ErrNoProviderConfigured = errors.New("no mail provider configured for sender")
	ErrAIDisabled           = errors.New("ai completions are not configured")
)

// RejectionError is surfaced to the mail transport as a refusal.
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string {
	return "rejected: " + e.Reason
}

// ParseError marks a raw message that could not be decoded at all.
type ParseError struct {
	Err error
}

func NewParseError(err error) *ParseError {
	return &ParseError{Err: err}
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse message: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// StorageError wraps blob or metadata write failures.
type StorageError struct {
	Op  string
	Err error
}

func NewStorageError(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// ValidationError is returned before any write when a record is malformed.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// NotificationError covers bot, webhook, forward and AI call failures.
// These are logged by the caller and never change the stored outcome.
type NotificationError struct {
	Channel string
	Err     error
}

func NewNotificationError(channel string, err error) *NotificationError {
	return &NotificationError{Channel: channel, Err: err}
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("%s notification: %v", e.Channel, e.Err)
}

func (e *NotificationError) Unwrap() error { return e.Err }

func IsRejection(err error) bool {
	var target *RejectionError
	return errors.As(err, &target)
}

func IsParseError(err error) bool {
	var target *ParseError
	return errors.As(err, &target)
}

func IsStorageError(err error) bool {
	var target *StorageError
	return errors.As(err, &target)
}

func IsValidationError(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}
