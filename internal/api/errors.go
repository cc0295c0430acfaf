package api

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors for backend operations.
var (
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrAuthorizationExpired = errors.New("authorization expired")
	ErrNotFound             = errors.New("resource not found")
	ErrSchemaMismatch       = errors.New("response schema mismatch")
	ErrNetwork              = errors.New("network failure")
	ErrServer               = errors.New("server error")
)

// ValidationError carries the per-field problems a backend reported.
type ValidationError struct {
	Fields  map[string]string
	Message string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		if e.Message == "" {
			return "validation failed"
		}
		return "validation failed: " + e.Message
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// RegistrationError is a generic account-creation failure.
type RegistrationError struct {
	Message string
	Err     error
}

func (e *RegistrationError) Error() string {
	return "registration failed: " + e.Message
}

func (e *RegistrationError) Unwrap() error { return e.Err }

// SchemaError reports a response that does not have the expected shape.
type SchemaError struct {
	Resource string
	Field    string
	Reason   string
}

func (e *SchemaError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("schema mismatch in %s: %s", e.Resource, e.Reason)
	}
	return fmt.Sprintf("schema mismatch in %s.%s: %s", e.Resource, e.Field, e.Reason)
}

func (e *SchemaError) Is(target error) bool { return target == ErrSchemaMismatch }

// NetworkError wraps a transport failure: no response was received.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) Is(target error) bool { return target == ErrNetwork }

// StatusError is a non-success response not covered by a more specific type.
// 404 matches ErrNotFound and 5xx matches ErrServer.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("API error (%d)", e.StatusCode)
	}
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == 404
	case ErrServer:
		return e.StatusCode >= 500
	}
	return false
}
