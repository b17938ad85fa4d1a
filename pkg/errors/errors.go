// Package errors: error types shared across the membership backend services.
// Follows the standard Go error style with Unwrap support throughout.
package errors

import "fmt"

// CacheError: an error from a cache store operation
type CacheError struct {
	Operation string // get, set, del, mget, stats...
	Key       string // cache key involved
	Err       error  // underlying cause
}

func (e CacheError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("cache error operation=%s key=%s", e.Operation, e.Key)
	}
	return fmt.Sprintf("cache error operation=%s key=%s: %v", e.Operation, e.Key, e.Err)
}

func (e CacheError) Unwrap() error { return e.Err }

// NewCacheError: creates a cache error.
func NewCacheError(operation, key string, cause error) *CacheError {
	return &CacheError{
		Operation: operation,
		Key:       key,
		Err:       cause,
	}
}

// SourceError: an error from the authoritative record source.
// Unavailable marks the specific "relation does not exist" condition that
// triggers the slow-projection fallback; any other source error propagates.
type SourceError struct {
	Operation   string
	Unavailable bool
	Err         error
}

func (e SourceError) Error() string {
	if e.Unavailable {
		return fmt.Sprintf("source unavailable operation=%s: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("source error operation=%s: %v", e.Operation, e.Err)
}

func (e SourceError) Unwrap() error { return e.Err }

// NewSourceError: creates a source error.
func NewSourceError(operation string, cause error) *SourceError {
	return &SourceError{Operation: operation, Err: cause}
}

// NewSourceUnavailable: creates a source error marking the fast projection
// as absent (undefined relation).
func NewSourceUnavailable(operation string, cause error) *SourceError {
	return &SourceError{Operation: operation, Unavailable: true, Err: cause}
}

// NotFoundError: the requested record does not exist in any projection.
// Terminal; never retried.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s not found id=%s", e.Resource, e.ID)
}

// NewNotFoundError: creates a not-found error.
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// PipelineError: a card generation sub-operation failed, aborting the whole
// generate call for that member.
type PipelineError struct {
	Stage    string // resolve, metadata, payload, render, assemble
	MemberID string
	Err      error
}

func (e PipelineError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("card pipeline error stage=%s member=%s", e.Stage, e.MemberID)
	}
	return fmt.Sprintf("card pipeline error stage=%s member=%s: %v", e.Stage, e.MemberID, e.Err)
}

func (e PipelineError) Unwrap() error { return e.Err }

// NewPipelineError: creates a pipeline error.
func NewPipelineError(stage, memberID string, cause error) *PipelineError {
	return &PipelineError{Stage: stage, MemberID: memberID, Err: cause}
}

// ValidationError: request input failed validation
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("validation error field=%s: %s", e.Field, e.Message)
}

// NewValidationError: creates a validation error.
func NewValidationError(message, field string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
