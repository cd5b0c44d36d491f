package model

import "errors"

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")
	// ErrTransient marks store failures that are safe to retry.
	ErrTransient = errors.New("transient store error")
	// ErrTooLarge marks a payload beyond what the service will build or accept.
	ErrTooLarge = errors.New("payload too large")
)
