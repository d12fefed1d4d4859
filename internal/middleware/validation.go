package middleware

import (
	"errors"

	"github.com/google/uuid"
)

// MaxMessageLength bounds the size of a single chat message.
const MaxMessageLength = 32000

// MaxThreadIDLength bounds a continuation token.
const MaxThreadIDLength = 128

var (
	ErrMessageTooLong    = errors.New("message exceeds maximum length")
	ErrInvalidExchangeID = errors.New("invalid exchange ID format")
	ErrInvalidThreadID   = errors.New("invalid thread ID")
)

// ValidateMessage checks a non-empty chat message.
func ValidateMessage(message string) error {
	if len(message) > MaxMessageLength {
		return ErrMessageTooLong
	}
	return nil
}

// ValidateThreadID rejects continuation tokens that cannot be a hosted thread id.
// An empty id is valid and means a new thread.
func ValidateThreadID(id string) error {
	if len(id) > MaxThreadIDLength {
		return ErrInvalidThreadID
	}
	return nil
}

// ValidateExchangeID validates an exchange ID.
func ValidateExchangeID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrInvalidExchangeID
	}
	return nil
}
