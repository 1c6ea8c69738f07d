package types

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a channel, message, post or user does not exist
	ErrNotFound = errors.New("not found")

	// ErrRateLimited covers flood waits and transport failures of the messaging API
	ErrRateLimited = errors.New("rate limited")

	// ErrAuthExpired means the messaging session is no longer authorised
	ErrAuthExpired = errors.New("authorization expired")

	// ErrSessionNotStarted is returned by collector operations before Start
	ErrSessionNotStarted = errors.New("session not started")

	// ErrValidation marks bad input from a caller
	ErrValidation = errors.New("invalid input")

	// ErrUnsupported is returned by a messaging source that cannot serve a call
	ErrUnsupported = errors.New("not supported by this source")
)

// ProviderErrorKind classifies LLM provider failures
type ProviderErrorKind string

const (
	ProviderAuth      ProviderErrorKind = "auth"
	ProviderQuota     ProviderErrorKind = "quota"
	ProviderTransport ProviderErrorKind = "transport"
)

// ProviderError wraps a failed language-model call
type ProviderError struct {
	Provider string
	Kind     ProviderErrorKind
	Status   int
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s request failed (%s, status %d): %v", e.Provider, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("%s request failed (%s): %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// ProviderKindForStatus maps an HTTP status to a failure kind
func ProviderKindForStatus(status int) ProviderErrorKind {
	switch {
	case status == 401 || status == 403:
		return ProviderAuth
	case status == 429:
		return ProviderQuota
	default:
		return ProviderTransport
	}
}

// MalformedOutputError means model output could not be parsed or did not
// carry the expected fields. Raw keeps the original text.
type MalformedOutputError struct {
	Task string
	Raw  string
	Err  error
}

func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("failed to parse %s response as JSON: %v", e.Task, e.Err)
}

func (e *MalformedOutputError) Unwrap() error {
	return e.Err
}
