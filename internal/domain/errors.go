// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates the entity was already modified by another actor.
var ErrConflict = errors.New("conflict: resource was modified by another request")

// ErrValidation indicates the request failed input validation.
var ErrValidation = errors.New("validation failed")

// ErrUnauthorized indicates the caller is not allowed to perform the operation.
var ErrUnauthorized = errors.New("unauthorized")

// ErrSystem indicates an internal invariant was violated, such as a
// missing system state row.
var ErrSystem = errors.New("system error")
