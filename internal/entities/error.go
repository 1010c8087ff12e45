package entities

import (
	"errors"
	"fmt"
)

var (
	ErrNoCredential       = errors.New("no app id configured")
	ErrInvalidCredential  = errors.New("invalid app id")
	ErrInvalidCache       = errors.New("invalid cache destination")
	ErrNoRate             = errors.New("no rate available")
	ErrZeroRate           = errors.New("rate is zero and cannot be inverted")
	ErrAccessRestricted   = errors.New("access restricted")
	ErrCredentialInactive = errors.New("app id inactive")
	ErrFetch              = errors.New("failed to fetch rates")
	ErrMalformedDocument  = errors.New("malformed rates document")
	ErrRedisTimeout       = errors.New("timeout waiting for Redis message")
	ErrRedisCanceled      = errors.New("redis subscription canceled")
)

// NoRateError names the pair that could not be resolved.
type NoRateError struct {
	From string
	To   string
	Type RateType
}

func (e *NoRateError) Error() string {
	if e.Type == "" || e.Type == Mid {
		return fmt.Sprintf("no rate found for %s -> %s", e.From, e.To)
	}
	return fmt.Sprintf("no %s rate found for %s -> %s", e.Type, e.From, e.To)
}

func (e *NoRateError) Unwrap() error { return ErrNoRate }

// APIError is a failure reported by the rates API or its transport.
type APIError struct {
	Status      int
	Code        string
	Description string
	Kind        error
}

func (e *APIError) Error() string {
	msg := e.Kind.Error()
	if e.Code != "" {
		msg += ": " + e.Code
	}
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Description != "" {
		msg += ": " + e.Description
	}
	return msg
}

func (e *APIError) Unwrap() error { return e.Kind }
