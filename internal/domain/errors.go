package domain

import (
	"errors"
	"strings"
)

var (
	// ErrCredential marks failures caused by an invalid, missing or forbidden
	// API credential. They are never retried.
	ErrCredential = errors.New("credential rejected")

	// ErrTransient marks gateway failures that survived the retry bound.
	ErrTransient = errors.New("transient gateway failure")

	ErrNoCredential      = errors.New("no credential configured")
	ErrInvalidCredential = errors.New("credential must be longer than 10 characters")
	ErrBusy              = errors.New("a submission is already in flight")
	ErrSessionNotFound   = errors.New("session not found")
	ErrMessageNotFound   = errors.New("message not found")
	ErrNothingToRetry    = errors.New("no previous action to retry")
	ErrEmptyPrompt       = errors.New("prompt must not be empty")
)

var credentialMarkers = []string{
	"401",
	"403",
	"API key not valid",
	"Requested entity was not found",
	"UNAUTHENTICATED",
	"PERMISSION_DENIED",
}

// IsCredentialError reports whether err signals an authentication or
// authorization problem, either by wrapping ErrCredential or by carrying one
// of the known markers in its text.
func IsCredentialError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrCredential) {
		return true
	}
	msg := err.Error()
	for _, m := range credentialMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
