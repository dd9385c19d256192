package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownProvider       = errors.New("unknown_provider")
	ErrProviderNotSet        = errors.New("provider_not_configured")
	ErrCardLookupUnsupported = errors.New("card_lookup_not_supported")
	ErrInvalidToken          = errors.New("invalid_provider_token")
	ErrEmptyResponse         = errors.New("empty_provider_response")
	ErrInvalidCardNo         = errors.New("invalid_card_no")
)

// NetworkError is returned when every attempt of a provider call failed before
// an HTTP response was received.
type NetworkError struct {
	Provider    Provider
	RequestType string
	Attempts    int
	Err         error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s failed after %d attempts: %v", e.Provider, e.RequestType, e.Attempts, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) ProviderFailure() bool { return true }

// StatusError is a non-200 provider response. It is never retried.
type StatusError struct {
	Provider    Provider
	RequestType string
	StatusCode  int
	Body        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s responded with HTTP status code %d: %s", e.Provider, e.RequestType, e.StatusCode, e.Body)
}

func (e *StatusError) ProviderFailure() bool { return true }

// RejectedError is a 200 response whose body reports a failure, such as a folio with status ERROR.
type RejectedError struct {
	Provider    Provider
	RequestType string
	Description string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s rejected %s: %s", e.Provider, e.RequestType, e.Description)
}

func (e *RejectedError) ProviderFailure() bool { return true }
